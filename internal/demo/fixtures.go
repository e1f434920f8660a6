// Package demo holds the built-in sample family and an activity generator
// for local development.
package demo

import (
	"kidboost.app/internal/family"
)

// TaskFixture describes one catalog entry before it is bound to a family.
type TaskFixture struct {
	Title       string
	Description string
	Points      int
	Category    string
	Completed   bool
}

// RewardFixture describes one reward catalog entry.
type RewardFixture struct {
	Title       string
	Description string
	Cost        int
	Category    string
}

// TaskCatalog is the sample chore list assigned round-robin across the
// family's children.
var TaskCatalog = []TaskFixture{
	{Title: "Clean your room", Description: "Make your bed and tidy up your toys", Points: 10, Category: "chores"},
	{Title: "Do math homework", Description: "Complete pages 12-15 in your workbook", Points: 15, Category: "homework", Completed: true},
	{Title: "Read for 20 minutes", Description: "Read your favorite book for at least 20 minutes", Points: 8, Category: "learning"},
	{Title: "Help set the table", Description: "Help set the table for dinner", Points: 5, Category: "chores"},
	{Title: "Practice piano", Description: "Practice piano for 30 minutes", Points: 12, Category: "learning", Completed: true},
}

// RewardCatalog is the sample reward shop.
var RewardCatalog = []RewardFixture{
	{Title: "Ice cream trip", Description: "Visit the ice cream shop for a special treat", Cost: 30, Category: "activity"},
	{Title: "New toy", Description: "Choose a new toy", Cost: 100, Category: "material"},
	{Title: "Extra screen time", Description: "30 minutes of additional screen time", Cost: 20, Category: "virtual"},
	{Title: "Water park visit", Description: "A trip to the water park on the weekend", Cost: 200, Category: "activity"},
}

// ChildNames are the sample roster entries.
var ChildNames = []string{"Child User", "Second Child"}

// CategoryEmoji maps a task or reward category to its display emoji.
func CategoryEmoji(category string) string {
	switch category {
	case "homework":
		return "\U0001F4DA"
	case "chores":
		return "\U0001F9F9"
	case "learning":
		return "\U0001F393"
	case "health":
		return "\U0001F4AA"
	case "material":
		return "\U0001F381"
	case "activity":
		return "\U0001F3AF"
	case "virtual":
		return "\U0001F3AE"
	default:
		return "✨"
	}
}

// NewTask binds a catalog entry to a child. The caller assigns the id and
// persists the row.
func NewTask(f TaskFixture, childID string) family.Task {
	status := family.TaskPending
	if f.Completed {
		status = family.TaskCompleted
	}
	return family.Task{
		ChildID:     childID,
		Title:       f.Title,
		Description: f.Description,
		Points:      f.Points,
		Category:    f.Category,
		Status:      status,
	}
}

// NewReward converts a catalog entry into a reward row.
func NewReward(f RewardFixture) family.Reward {
	return family.Reward{
		Title:       f.Title,
		Description: f.Description,
		Cost:        f.Cost,
		Icon:        f.Category,
	}
}
