package main

import (
	"context"
	"fmt"
	"time"

	"github.com/siwesng/slims/core"
	"github.com/siwesng/slims/core/session"
)

func (cli *commandLine) createSession(name, start string, weeks int) error {
	startDate, err := time.Parse("2006-01-02", start)
	if err != nil {
		return fmt.Errorf("start date must be of form YYYY-MM-DD (got %q)", start)
	}
	if weeks < 1 || weeks > 52 {
		return fmt.Errorf("weeks must be between 1 and 52 (got %d)", weeks)
	}

	now := time.Now().UTC()
	s := session.Session{
		Name:       core.CleanString(name),
		StartDate:  startDate.UTC(),
		TotalWeeks: weeks,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s, err = cli.sessRepo.CreateSession(context.Background(), s)
	if err != nil {
		return err
	}
	fmt.Printf("session %q created: %s\n", s.Name, s.ID)
	return nil
}
