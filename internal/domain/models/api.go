package models

// DeviationsRequest bounds how much scored history one call returns.
type DeviationsRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=0,lte=10000"`
}

// TradesRequest filters the ledger listing.
type TradesRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=0,lte=10000"`
}

// TrainRequest overrides parts of the configured training run.
type TrainRequest struct {
	Epochs    int     `json:"epochs" default:"0" validate:"gte=0,lte=10000"`
	BatchSize int     `json:"batch_size" default:"0" validate:"gte=0,lte=4096"`
	LearnRate float64 `json:"learn_rate" default:"0" validate:"gte=0"`
	Exponent  string  `json:"exponent" validate:"omitempty,oneof=fixed learned"`
	Seed      int64   `json:"seed" default:"0"`
}
