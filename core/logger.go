package core

// Logger logs messages & errors.
// args may hold errors, extra data (map[string]interface{}) and the administrator performing the action.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
