package models

// ResultStatus is the outcome reported back to the alert source.
type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultIgnored ResultStatus = "ignored"
	ResultError   ResultStatus = "error"
)

// Result is the outcome of processing one alert.
type Result struct {
	Status  ResultStatus `json:"status"`
	Message string       `json:"message"`
	Event   *TradeEvent  `json:"-"`
	// Err is the cause of an error result.
	Err error `json:"-"`
}

// Success builds a success result.
func Success(message string) Result {
	return Result{Status: ResultSuccess, Message: message}
}

// Ignored builds an ignored result.
func Ignored(message string) Result {
	return Result{Status: ResultIgnored, Message: message}
}

// Failure builds an error result caused by err.
func Failure(message string, err error) Result {
	return Result{Status: ResultError, Message: message, Err: err}
}
