package tasks

// DefineTasks registers all available tasks
func DefineTasks(r *Registry) {
	// General
	r.Register(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Ledger
	r.Register(SweepOverdueTask.TaskID(), SweepOverdueTask.HandleExecution)
	r.Register(GenerateInvoicesTask.TaskID(), GenerateInvoicesTask.HandleExecution)

	// Notifications
	r.Register(SendNotificationTask.TaskID(), SendNotificationTask.HandleExecution)
}

// DefaultRegistry returns a registry with every task defined
func DefaultRegistry() *Registry {
	r := NewRegistry()
	DefineTasks(r)
	return r
}
