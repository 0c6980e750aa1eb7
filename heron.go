package heron

const (
	AppName = "heron"
	Version = "0.1.0"
)
