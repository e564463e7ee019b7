package models

// TrainingSample is a property with a known appraisal, loaded fresh for every
// estimator invocation and discarded afterwards.
type TrainingSample struct {
	YearBuilt     *int
	AccountNumber string
	PropertyType  string
	Zip           string
	Latitude      float64
	Longitude     float64
	AreaAcres     float64
	TotalValue    float64
}

// FeatureVector describes the property whose value is being estimated.
type FeatureVector struct {
	Latitude     *float64 `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude    *float64 `json:"longitude" binding:"required,min=-180,max=180"`
	AreaAcres    *float64 `json:"areaAcres" binding:"required,gt=0"`
	YearBuilt    *int     `json:"yearBuilt,omitempty"`
	PropertyType string   `json:"propertyType,omitempty"`
	Zip          string   `json:"zip,omitempty"`
}

// FeatureVectorFromProperty builds the query vector for a stored property.
func FeatureVectorFromProperty(p *Property) FeatureVector {
	fv := FeatureVector{
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		AreaAcres: p.AreaAcres,
		YearBuilt: p.YearBuilt,
	}
	if p.PropertyType != nil {
		fv.PropertyType = *p.PropertyType
	}
	if p.Zip != nil {
		fv.Zip = *p.Zip
	}
	return fv
}

// Prediction is an accepted estimate ready to be persisted.
type Prediction struct {
	AccountNumber   string  `json:"accountNumber"`
	EstimatedValue  float64 `json:"estimatedValue"`
	ConfidenceScore float64 `json:"confidenceScore"`
	InvestmentScore int     `json:"investmentScore"`
}
