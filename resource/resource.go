package resource

type Type uint8

/*
Resource represents any external resource that a compute session acquires
and must release when the session ends. The way to define a new resource is
to create a struct that implements Config. Using that config, materialize
the resource; any setup should happen during materialization. The session
closes resources in the reverse order of acquisition.
*/

const (
	LocalStore    Type = 1
	S3Store       Type = 2
	TraceProvider Type = 3
	MetricsPusher Type = 4
)

func (t Type) String() string {
	switch t {
	case LocalStore:
		return "local_store"
	case S3Store:
		return "s3_store"
	case TraceProvider:
		return "trace_provider"
	case MetricsPusher:
		return "metrics_pusher"
	default:
		return "unknown"
	}
}

type Config interface {
	Materialize() (Resource, error)
}

type Resource interface {
	Close() error
	Type() Type
}
