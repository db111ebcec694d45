package spanwrap

//go:generate go tool mockgen -destination=./mocks/mock_tracer.go -package mocks github.com/u-ctf/spanwrap/instrument Tracer
//go:generate go tool mockgen -destination=./mocks/mock_instrumenter.go -package mocks github.com/u-ctf/spanwrap/instrument Instrumenter
