package mocks

//go:generate mockgen -destination=./mock_notifier.go -package=mocks flipguard/internal/notify Notifier
//go:generate mockgen -destination=./mock_trigger.go -package=mocks flipguard/internal/trigger Trigger
