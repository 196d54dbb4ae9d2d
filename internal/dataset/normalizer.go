package dataset

import (
	"context"

	"github.com/DimaM-BeStreet/AttenDance-sub001/internal/model"
)

// Normalizer turns an uploaded file into a ParsedDataset. A failure never
// yields a partial dataset.
type Normalizer interface {
	Normalize(ctx context.Context, fileName string, data []byte) (*model.ParsedDataset, error)
}
