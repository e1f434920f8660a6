package family

// TasksForChild filters tasks down to those assigned to the given child,
// preserving input order.
func TasksForChild(tasks []Task, childID string) []Task {
	if childID == "" {
		return nil
	}
	var out []Task
	for _, t := range tasks {
		if t.ChildID == childID {
			out = append(out, t)
		}
	}
	return out
}

// AvailablePoints sums the points of the child's completed tasks. Pending
// tasks have not been earned yet and approved tasks are considered spent,
// so neither contributes to the balance.
func AvailablePoints(tasks []Task, childID string) int {
	total := 0
	for _, t := range tasks {
		if t.ChildID == childID && t.Status == TaskCompleted {
			total += t.Points
		}
	}
	return total
}
