// Command demo provisions a demo family on a running server and optionally
// keeps generating activity so event streams have traffic.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kidboost.app/internal/auth"
	"kidboost.app/internal/client"
	"kidboost.app/internal/demo"
	"kidboost.app/internal/family"
)

func main() {
	log.SetFlags(0)
	var (
		base     = flag.String("url", envOr("KIDBOOST_API_URL", "http://localhost:8080"), "API base URL")
		email    = flag.String("email", "demo-parent@example.com", "Demo parent email")
		password = flag.String("password", "demo-password", "Demo parent password")
		interval = flag.Duration("interval", 0, "Keep generating one action per interval (0 seeds and exits)")
	)
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	c := client.New(*base)
	if err := login(ctx, c, *email, *password); err != nil {
		log.Fatalf("login demo parent: %v", err)
	}

	children := c.Children()
	tasks := c.Tasks()
	if err := seed(ctx, c, children, tasks); err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("demo family ready at %s (parent %s)\n", *base, *email)

	if *interval <= 0 {
		return
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			step(context.Background(), children, tasks, rnd)
		}
	}
}

// login signs in, registering the account first if it does not exist yet.
func login(ctx context.Context, c *client.Client, email, password string) error {
	if _, err := c.Login(ctx, email, password); err == nil {
		return nil
	}
	confirmToken, err := c.Signup(ctx, email, password, auth.UserMetadata{
		Name: "Demo Parent",
		Role: auth.RoleParent,
	})
	if err != nil {
		return err
	}
	if err := c.ConfirmSignup(ctx, confirmToken); err != nil {
		return err
	}
	_, err = c.Login(ctx, email, password)
	return err
}

// seed fills an empty family from the demo catalog; a family that already
// has children is left alone.
func seed(ctx context.Context, c *client.Client, children *client.ChildrenCollection, tasks *client.TasksCollection) error {
	if err := children.Refresh(ctx); err != nil {
		return err
	}
	if len(children.Items()) > 0 {
		return nil
	}

	var roster []family.Child
	for _, name := range demo.ChildNames {
		child, err := children.Add(ctx, name, "")
		if err != nil {
			return err
		}
		roster = append(roster, child)
	}
	for i, fixture := range demo.TaskCatalog {
		child := roster[i*len(roster)/len(demo.TaskCatalog)]
		task, err := tasks.Add(ctx, child.ID, fixture.Title, fixture.Category, fixture.Points)
		if err != nil {
			return err
		}
		if fixture.Completed {
			if err := tasks.Complete(ctx, task.ID); err != nil {
				return err
			}
		}
	}
	rewards := c.Rewards()
	for _, fixture := range demo.RewardCatalog {
		if _, err := rewards.Add(ctx, fixture.Title, fixture.Category, fixture.Cost); err != nil {
			return err
		}
	}
	return nil
}

// step mirrors the in-process activity generator over the HTTP API.
func step(ctx context.Context, children *client.ChildrenCollection, tasks *client.TasksCollection, rnd *rand.Rand) {
	if err := tasks.Refresh(ctx); err != nil {
		return
	}
	items := tasks.Items()

	if task, ok := pick(items, family.TaskPending, rnd); ok && rnd.Intn(2) == 0 {
		_ = tasks.Complete(ctx, task.ID)
		return
	}
	if task, ok := pick(items, family.TaskCompleted, rnd); ok && rnd.Intn(2) == 0 {
		_ = tasks.Approve(ctx, task.ID)
		return
	}

	if err := children.Refresh(ctx); err != nil {
		return
	}
	roster := children.Items()
	if len(roster) == 0 {
		return
	}
	fixture := demo.TaskCatalog[rnd.Intn(len(demo.TaskCatalog))]
	child := roster[rnd.Intn(len(roster))]
	_, _ = tasks.Add(ctx, child.ID, fixture.Title, fixture.Category, fixture.Points)
}

func pick(items []family.Task, status family.TaskStatus, rnd *rand.Rand) (family.Task, bool) {
	var matching []family.Task
	for _, t := range items {
		if t.Status == status {
			matching = append(matching, t)
		}
	}
	if len(matching) == 0 {
		return family.Task{}, false
	}
	return matching[rnd.Intn(len(matching))], true
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
