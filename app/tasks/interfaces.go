package tasks

// TaskSchedulerInterface defines the interface for task scheduling operations.
// Used by the main application to manage background source ingestion.
// Example usage:
//
//	scheduler := tasks.NewScheduler(sources, runner)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(tasks.NewIngestSourceTask(source, runner))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}
