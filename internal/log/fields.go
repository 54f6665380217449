package log

// 结构化日志字段名。
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldTerm       = "term"
	FieldPage       = "page"
	FieldMovieID    = "imdb_id"
	FieldGeneration = "generation"
	FieldBackend    = "backend"
	FieldKey        = "key"
	FieldHost       = "host"
	FieldStatus     = "status"
)
