package service

// TaskQueue is the background queue surface the services need.
// Implemented by tasks.Queue.
type TaskQueue interface {
	Enqueue(op string, args ...string) (string, error)
	Cancel(key string) bool
	CountActive(op string) int
}
