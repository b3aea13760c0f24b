package dto

// DailySuccessMessage is returned once every step of a run has passed
const DailySuccessMessage = "DBT Run Successfully"

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Detail string `json:"detail"`
}
