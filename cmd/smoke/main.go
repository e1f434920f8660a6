// Command smoke runs an end-to-end flow against a live server through the
// client SDK: parent signup, child invite and self-registration, task
// lifecycle and the points balance.
package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"time"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/client"
)

func main() {
	base := os.Getenv("KIDBOOST_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	run := rand.Int()
	parent := client.New(base)
	parentUser := register(ctx, parent, fmt.Sprintf("smoke-parent-%d@example.com", run), auth.UserMetadata{
		Name: "Smoke Parent",
		Role: auth.RoleParent,
	})

	// The invite link carries the parent id the child signs up with.
	link := parent.GenerateChildInviteLink(base)
	if link == "" {
		log.Fatal("parent got no invite link")
	}
	parentID, err := parentIDFromLink(link)
	if err != nil {
		log.Fatalf("parse invite link %q: %v", link, err)
	}
	if parentID != parentUser.ID {
		log.Fatalf("invite link carries %q, want %q", parentID, parentUser.ID)
	}

	child := client.New(base)
	childUser := register(ctx, child, fmt.Sprintf("smoke-child-%d@example.com", run), auth.UserMetadata{
		Name:     "Smoke Child",
		Role:     auth.RoleChild,
		ParentID: parentID,
	})

	roster := child.Children()
	if err := roster.EnsureSelfRegistered(ctx); err != nil {
		log.Fatalf("self-register: %v", err)
	}
	if err := roster.Refresh(ctx); err != nil {
		log.Fatalf("list children: %v", err)
	}
	if !hasChild(roster, childUser.ID) {
		log.Fatalf("roster misses the self-registered child %s", childUser.ID)
	}

	parentTasks := parent.Tasks()
	if err := parentTasks.Refresh(ctx); err != nil {
		log.Fatalf("list tasks: %v", err)
	}
	task, err := parentTasks.Add(ctx, childUser.ID, "Smoke chore", "chores", 7)
	if err != nil {
		log.Fatalf("add task: %v", err)
	}

	childTasks := child.Tasks()
	if err := childTasks.Refresh(ctx); err != nil {
		log.Fatalf("child list tasks: %v", err)
	}
	if err := childTasks.Complete(ctx, task.ID); err != nil {
		log.Fatalf("complete task: %v", err)
	}
	if got := childTasks.AvailablePoints(childUser.ID); got != 7 {
		log.Fatalf("points after completion: got %d, want 7", got)
	}

	if err := parentTasks.Refresh(ctx); err != nil {
		log.Fatalf("refresh tasks: %v", err)
	}
	if err := parentTasks.Approve(ctx, task.ID); err != nil {
		log.Fatalf("approve task: %v", err)
	}
	if got := parentTasks.AvailablePoints(childUser.ID); got != 0 {
		log.Fatalf("points after approval: got %d, want 0", got)
	}

	if ok := parent.UpdateUserName(ctx, "Smoke Parent Renamed"); !ok {
		log.Fatal("rename failed")
	}
	if err := parent.Logout(ctx); err != nil {
		log.Fatalf("logout: %v", err)
	}

	fmt.Printf("✅ kidboost smoke test passed: parent=%s child=%s\n", parentUser.ID, childUser.ID)
}

func register(ctx context.Context, c *client.Client, email string, meta auth.UserMetadata) client.User {
	confirmToken, err := c.Signup(ctx, email, "smoke-password", meta)
	if err != nil {
		log.Fatalf("signup %s: %v", email, err)
	}
	if err := c.ConfirmSignup(ctx, confirmToken); err != nil {
		log.Fatalf("confirm %s: %v", email, err)
	}
	user, err := c.Login(ctx, email, "smoke-password")
	if err != nil {
		log.Fatalf("login %s: %v", email, err)
	}
	return user
}

func parentIDFromLink(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil {
		return "", err
	}
	return u.Query().Get("parentId"), nil
}

func hasChild(roster *client.ChildrenCollection, id string) bool {
	for _, c := range roster.Items() {
		if c.ID == id {
			return true
		}
	}
	return false
}
