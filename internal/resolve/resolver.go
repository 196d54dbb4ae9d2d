package resolve

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/logger"
	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
	"github.com/DimaM-BeStreet/AttenDance-sub001/pkg/errors"

	"github.com/rs/zerolog"
)

// OptionSource bulk-loads the full option set for an entity kind.
type OptionSource interface {
	List(ctx context.Context, tenantID, entity string) ([]model.SystemOption, error)
}

// Searcher serves on-demand term queries for entities whose option sets are
// too large to bulk-load.
type Searcher interface {
	Search(ctx context.Context, tenantID, entity, term string) ([]model.SystemOption, error)
}

type entry struct {
	value model.ResolvedValue
	auto  bool
}

// ResolvedRow is one dataset row with its relational columns replaced by
// resolved ids. IDs holds the resolved ids per relational field key;
// multi-value cells yield multiple ids.
type ResolvedRow struct {
	Row model.SourceRow
	IDs map[string][]string
}

// Resolver maps the raw text values of relational columns onto system entity
// ids. All state is session-scoped: two wizard sessions never share caches,
// and a decision, once made for a raw value, applies to every row carrying
// that exact text.
type Resolver struct {
	tenantID string
	fields   []model.FieldDescriptor
	byKey    map[string]model.FieldDescriptor
	source   OptionSource
	searcher Searcher

	options     map[string][]model.SystemOption
	searchCache map[string][]model.SystemOption
	values      map[string]map[string]entry
	blocked     map[string]map[string]bool
	log         zerolog.Logger
}

// New builds a resolver over the relational subset of the descriptor set.
func New(tenantID string, fields []model.FieldDescriptor, source OptionSource, searcher Searcher) *Resolver {
	r := &Resolver{
		tenantID:    tenantID,
		source:      source,
		searcher:    searcher,
		byKey:       make(map[string]model.FieldDescriptor),
		options:     make(map[string][]model.SystemOption),
		searchCache: make(map[string][]model.SystemOption),
		values:      make(map[string]map[string]entry),
		blocked:     make(map[string]map[string]bool),
		log:         logger.Get(),
	}
	for _, f := range fields {
		if f.Relational == nil {
			continue
		}
		r.fields = append(r.fields, f)
		r.byKey[f.Key] = f
	}
	return r
}

func (r *Resolver) HasFields() bool {
	return len(r.fields) > 0
}

// LoadOptions bulk-loads option sets for every non-remote relational field.
// The per-field loads are independent and issued together; each goroutine
// writes only its own slot, and the shared options map is filled after the
// fan-in so it never sees concurrent writes.
func (r *Resolver) LoadOptions(ctx context.Context) error {
	var wg sync.WaitGroup
	errs := make([]error, len(r.fields))
	loaded := make([][]model.SystemOption, len(r.fields))

	for i, f := range r.fields {
		if f.Relational.Remote {
			continue
		}
		wg.Add(1)
		go func(i int, f model.FieldDescriptor) {
			defer wg.Done()
			opts, err := r.source.List(ctx, r.tenantID, f.Relational.Entity)
			if err != nil {
				errs[i] = fmt.Errorf("loading options for %s: %w", f.Key, err)
				return
			}
			loaded[i] = filterActive(opts)
		}(i, f)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}

	for i, f := range r.fields {
		if f.Relational.Remote {
			continue
		}
		r.options[f.Key] = loaded[i]
		r.log.Debug().Str("field", f.Key).Int("options", len(loaded[i])).Msg("Options loaded")
	}
	return nil
}

// filterActive drops options whose retained record carries a false
// isActive-like flag. Options without such a flag pass through.
func filterActive(opts []model.SystemOption) []model.SystemOption {
	out := opts[:0]
	for _, o := range opts {
		if isInactive(o) {
			continue
		}
		out = append(out, o)
	}
	return out
}

func isInactive(o model.SystemOption) bool {
	for _, key := range []string{"isActive", "is_active", "active"} {
		if v, ok := o.Original[key]; ok {
			if b, ok := v.(bool); ok {
				return !b
			}
		}
	}
	return false
}

// DistinctValues extracts the distinct trimmed raw strings of one mapped
// relational column, splitting multi-value cells when the field declares a
// separator. Order follows first appearance.
func (r *Resolver) DistinctValues(ds *model.ParsedDataset, mapping *model.ColumnMapping, fieldKey string) []string {
	field, ok := r.byKey[fieldKey]
	if !ok {
		return nil
	}
	col, ok := mapping.Column(fieldKey)
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var values []string
	for i := range ds.Rows {
		for _, raw := range splitCell(ds.CellAt(i, col), field.Relational.Separator) {
			if !seen[raw] {
				seen[raw] = true
				values = append(values, raw)
			}
		}
	}
	return values
}

func splitCell(cell model.Cell, separator string) []string {
	text := cell.Trimmed()
	if text == "" {
		return nil
	}
	if separator == "" {
		return []string{text}
	}
	var out []string
	for _, part := range strings.Split(text, separator) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AutoMatch computes best-effort mappings for every raw value that has no
// decision yet. Independent fields go first so dependent fields can filter
// their candidates by the resolved parent of the same row.
func (r *Resolver) AutoMatch(ctx context.Context, ds *model.ParsedDataset, mapping *model.ColumnMapping) error {
	for _, f := range r.fields {
		if f.Relational.DependsOn != "" {
			continue
		}
		if err := r.autoMatchIndependent(ctx, ds, mapping, f); err != nil {
			return err
		}
	}
	for _, f := range r.fields {
		if f.Relational.DependsOn == "" {
			continue
		}
		r.autoMatchDependent(ds, mapping, f)
	}
	return nil
}

func (r *Resolver) autoMatchIndependent(ctx context.Context, ds *model.ParsedDataset, mapping *model.ColumnMapping, field model.FieldDescriptor) error {
	for _, raw := range r.DistinctValues(ds, mapping, field.Key) {
		if _, exists := r.lookup(field.Key, raw); exists {
			continue
		}

		candidates := r.options[field.Key]
		if field.Relational.Remote {
			found, err := r.searchOptions(ctx, field, raw)
			if err != nil {
				return err
			}
			candidates = found
		}

		if opt := matchOption(raw, candidates); opt != nil {
			r.setEntry(field.Key, raw, entry{value: model.Resolved(opt.ID), auto: true})
		}
	}
	return nil
}

// autoMatchDependent walks rows rather than distinct values: the candidate
// set for a child value is narrowed by the parent ids resolved on the same
// row. An unresolved parent blocks the child pending manual resolution.
func (r *Resolver) autoMatchDependent(ds *model.ParsedDataset, mapping *model.ColumnMapping, field model.FieldDescriptor) {
	col, ok := mapping.Column(field.Key)
	if !ok {
		return
	}
	parentField, ok := r.byKey[field.Relational.DependsOn]
	if !ok {
		return
	}
	parentCol, parentMapped := mapping.Column(parentField.Key)

	for i := range ds.Rows {
		raws := splitCell(ds.CellAt(i, col), field.Relational.Separator)
		if len(raws) == 0 {
			continue
		}

		var parentIDs []string
		if parentMapped {
			for _, parentRaw := range splitCell(ds.CellAt(i, parentCol), parentField.Relational.Separator) {
				if v, ok := r.lookup(parentField.Key, parentRaw); ok && v.IsResolved() {
					parentIDs = append(parentIDs, v.ID)
				}
			}
		}

		for _, raw := range raws {
			if _, exists := r.lookup(field.Key, raw); exists {
				continue
			}
			if len(parentIDs) == 0 {
				r.setBlocked(field.Key, raw, true)
				continue
			}

			candidates := filterByParent(r.options[field.Key], field.Relational.ParentAttr, parentIDs)
			if opt := matchOption(raw, candidates); opt != nil {
				r.setEntry(field.Key, raw, entry{value: model.Resolved(opt.ID), auto: true})
				r.setBlocked(field.Key, raw, false)
			}
		}
	}
}

func filterByParent(opts []model.SystemOption, parentAttr string, parentIDs []string) []model.SystemOption {
	allowed := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		allowed[id] = true
	}
	var out []model.SystemOption
	for _, o := range opts {
		if allowed[o.Attr(parentAttr)] {
			out = append(out, o)
		}
	}
	return out
}

// matchOption implements the auto-match policy: case-insensitive exact name
// match first, then the first substring match in either direction. Nil means
// manual resolution is required.
func matchOption(raw string, candidates []model.SystemOption) *model.SystemOption {
	lower := strings.ToLower(raw)
	for i := range candidates {
		if strings.ToLower(candidates[i].Name) == lower {
			return &candidates[i]
		}
	}
	for i := range candidates {
		name := strings.ToLower(candidates[i].Name)
		if name == "" {
			continue
		}
		if strings.Contains(lower, name) || strings.Contains(name, lower) {
			return &candidates[i]
		}
	}
	return nil
}

// searchOptions queries the remote directory with per-(field, term) caching
// so identical raw values never trigger a second lookup.
func (r *Resolver) searchOptions(ctx context.Context, field model.FieldDescriptor, term string) ([]model.SystemOption, error) {
	if len([]rune(term)) < 2 {
		return nil, nil
	}
	if r.searcher == nil {
		return nil, nil
	}

	key := field.Key + "\x00" + strings.ToLower(term)
	if cached, ok := r.searchCache[key]; ok {
		return cached, nil
	}

	found, err := r.searcher.Search(ctx, r.tenantID, field.Relational.Entity, term)
	if err != nil {
		return nil, fmt.Errorf("searching %s options: %w", field.Key, err)
	}
	found = filterActive(found)
	r.searchCache[key] = found
	return found, nil
}

// SetValue records a user decision for one raw value. CreateRequested is
// rejected here, at selection time, rather than ignored at execution time.
// A decision on a parent field drops cached auto-matches of its dependents
// so they can be recomputed against the new parent id.
func (r *Resolver) SetValue(fieldKey, raw string, v model.ResolvedValue) error {
	if _, ok := r.byKey[fieldKey]; !ok {
		return errors.ErrUnknownField
	}
	if v.Kind == model.ResolutionCreate {
		return errors.ErrCreateNotSupported
	}

	raw = strings.TrimSpace(raw)
	r.setEntry(fieldKey, raw, entry{value: v})
	r.InvalidateDependents(fieldKey)
	return nil
}

// InvalidateDependents drops auto-matched entries (and block flags) of every
// field that depends on the given one. User decisions survive.
func (r *Resolver) InvalidateDependents(fieldKey string) {
	for _, f := range r.fields {
		if f.Relational.DependsOn != fieldKey {
			continue
		}
		for raw, e := range r.values[f.Key] {
			if e.auto {
				delete(r.values[f.Key], raw)
			}
		}
		delete(r.blocked, f.Key)
	}
}

// InvalidateField drops all auto-matched entries for one field, e.g. after
// its source column changed in the mapping step.
func (r *Resolver) InvalidateField(fieldKey string) {
	for raw, e := range r.values[fieldKey] {
		if e.auto {
			delete(r.values[fieldKey], raw)
		}
	}
	delete(r.blocked, fieldKey)
	r.InvalidateDependents(fieldKey)
}

// Value returns the current decision for a raw value, if any.
func (r *Resolver) Value(fieldKey, raw string) (model.ResolvedValue, bool) {
	return r.lookup(fieldKey, strings.TrimSpace(raw))
}

// Blocked lists raw values waiting on parent resolution.
func (r *Resolver) Blocked(fieldKey string) []string {
	var out []string
	for raw, blocked := range r.blocked[fieldKey] {
		if blocked {
			out = append(out, raw)
		}
	}
	return out
}

// Unresolved lists distinct raw values that still have no decision.
func (r *Resolver) Unresolved(ds *model.ParsedDataset, mapping *model.ColumnMapping, fieldKey string) []string {
	var out []string
	for _, raw := range r.DistinctValues(ds, mapping, fieldKey) {
		if _, ok := r.lookup(fieldKey, raw); !ok {
			out = append(out, raw)
		}
	}
	return out
}

// TransformRows applies the value mapping to the dataset. Relational cells
// are replaced by their resolved ids; rows carrying a skipped value are
// excluded entirely. Pure lookup by raw value - nothing is re-matched here.
func (r *Resolver) TransformRows(ds *model.ParsedDataset, mapping *model.ColumnMapping) []ResolvedRow {
	var out []ResolvedRow

rows:
	for i := range ds.Rows {
		cells := make([]model.Cell, len(ds.Rows[i]))
		copy(cells, ds.Rows[i])
		ids := make(map[string][]string)

		for _, f := range r.fields {
			col, ok := mapping.Column(f.Key)
			if !ok {
				continue
			}

			var resolved []string
			for _, raw := range splitCell(ds.CellAt(i, col), f.Relational.Separator) {
				v, ok := r.lookup(f.Key, raw)
				if !ok {
					continue
				}
				if v.IsSkipped() {
					continue rows
				}
				if v.IsResolved() {
					resolved = append(resolved, v.ID)
				}
			}

			if len(resolved) > 0 {
				ids[f.Key] = resolved
			}
			sep := f.Relational.Separator
			if sep == "" {
				sep = ","
			}
			if col < len(cells) {
				cells[col] = model.Cell(strings.Join(resolved, sep))
			}
		}

		out = append(out, ResolvedRow{
			Row: model.SourceRow{Ref: model.NewRowRef(i), Cells: cells},
			IDs: ids,
		})
	}
	return out
}

// IDIndex keys each transformed row's resolved ids by its source index, so
// later pipeline stages can correlate a row's import outcome back to the
// references resolved from its own cells.
func IDIndex(rows []ResolvedRow) map[int]map[string][]string {
	out := make(map[int]map[string][]string, len(rows))
	for _, row := range rows {
		if len(row.IDs) > 0 {
			out[row.Row.Ref.SourceIndex] = row.IDs
		}
	}
	return out
}

func (r *Resolver) lookup(fieldKey, raw string) (model.ResolvedValue, bool) {
	e, ok := r.values[fieldKey][raw]
	if !ok {
		return model.ResolvedValue{}, false
	}
	return e.value, true
}

func (r *Resolver) setEntry(fieldKey, raw string, e entry) {
	if r.values[fieldKey] == nil {
		r.values[fieldKey] = make(map[string]entry)
	}
	r.values[fieldKey][raw] = e
}

func (r *Resolver) setBlocked(fieldKey, raw string, blocked bool) {
	if r.blocked[fieldKey] == nil {
		r.blocked[fieldKey] = make(map[string]bool)
	}
	r.blocked[fieldKey][raw] = blocked
}
