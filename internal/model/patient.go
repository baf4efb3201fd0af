package model

type Patient struct {
	Base
	Name          string `db:"name" json:"name" validate:"notblank,max=100"`
	Age           int    `db:"age" json:"age" validate:"min=0,max=150"`
	LoyaltyPoints int    `db:"loyalty_points" json:"loyalty_points" validate:"gte=0"`
}

// PatientRequest is validated by the service once the target patient is known.
type PatientRequest struct {
	Name          string `json:"name"`
	Age           int    `json:"age"`
	LoyaltyPoints int    `json:"loyalty_points"`
}

type LoyaltyRequest struct {
	Points int `json:"points" form:"points"`
}

type PatientFilter struct {
	Name       string
	Age        *int
	MinLoyalty *int
}
