package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/dangerclosesec/assessly/sdk/client"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "assessly API base URL")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	code := flag.String("org", "", "organization code")
	flag.Parse()

	c := client.NewClient(&client.Config{
		BaseURL: *baseURL,
		Timeout: 10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := runExample(ctx, c, *email, *password, *code); err != nil {
		log.Fatalf("Error running example: %v", err)
	}
}

func runExample(ctx context.Context, c *client.Client, email, password, code string) error {
	fmt.Println("1. Logging in...")
	session, err := c.Login(ctx, &client.LoginRequest{Email: email, Password: password, OrganizationCode: code})
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Printf("Logged in as %v, next stop %s\n", session.User["email"], session.Redirect)

	fmt.Println("\n2. Checking onboarding...")
	status, err := c.OnboardingStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to read onboarding status: %w", err)
	}
	if status.State == "org_bound" {
		teams, err := c.Teams(ctx)
		if err != nil {
			return fmt.Errorf("failed to list teams: %w", err)
		}
		if len(teams) == 0 {
			return fmt.Errorf("organization has no teams yet")
		}
		if _, err := c.SelectTeam(ctx, teams[0].ID); err != nil {
			return fmt.Errorf("failed to select team: %w", err)
		}
		fmt.Printf("Joined team %s\n", teams[0].Name)
	}

	fmt.Println("\n3. Saving a result...")
	result, err := c.SaveResult(ctx, "sample", map[string]any{"q1": 3, "q2": 5})
	if err != nil {
		if client.NeedsTeamSelection(err) {
			return fmt.Errorf("team selection still pending: %w", err)
		}
		return fmt.Errorf("failed to save result: %w", err)
	}
	fmt.Printf("Result %s stored\n", result.ID)

	fmt.Println("\n4. Re-checking role...")
	role, err := c.CurrentRole(ctx)
	if err != nil {
		return fmt.Errorf("failed to read current role: %w", err)
	}
	fmt.Printf("Current role: %s\n", role.Role)

	fmt.Println("\n5. Logging out...")
	revoked, err := c.Logout(ctx)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	fmt.Printf("Server-side revocation: %v\n", revoked)
	return nil
}
