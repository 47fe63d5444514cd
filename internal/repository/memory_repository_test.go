// internal/repository/memory_repository_test.go
package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"pos-print-bridge/internal/model"
)

func job(source model.JobSource, status model.JobStatus, transport model.TransportType, age time.Duration) *model.PrintJob {
	j := model.NewPrintJob(source)
	j.CreatedAt = time.Now().Add(-age)
	j.Transport = transport
	j.Complete(status, nil)
	return j
}

func TestMemoryCreateGetUpdate(t *testing.T) {
	repo := NewMemoryJobRepository(10)
	ctx := context.Background()

	j := model.NewPrintJob(model.JobSourceAPI)
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, j); err == nil {
		t.Fatal("duplicate create should fail")
	}

	j.Transport = model.TransportNetwork
	j.Complete(model.JobStatusFailed, errors.New("printer not connected"))
	if err := repo.Update(ctx, j); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := repo.GetByID(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Status != model.JobStatusFailed || got.ErrorMessage == nil || *got.ErrorMessage != "printer not connected" {
		t.Fatalf("unexpected stored job %+v", got)
	}

	if _, err := repo.GetByID(ctx, uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	if err := repo.Update(ctx, model.NewPrintJob(model.JobSourceAPI)); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound on update, got %v", err)
	}
}

func TestMemoryListFiltersAndPages(t *testing.T) {
	repo := NewMemoryJobRepository(10)
	ctx := context.Background()

	jobs := []*model.PrintJob{
		job(model.JobSourceBridge, model.JobStatusPrinted, model.TransportNetwork, 3*time.Minute),
		job(model.JobSourceBridge, model.JobStatusFailed, model.TransportBluetooth, 2*time.Minute),
		job(model.JobSourceAPI, model.JobStatusPrinted, model.TransportBluetooth, time.Minute),
	}
	for _, j := range jobs {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	all, total, err := repo.List(ctx, &JobFilter{})
	if err != nil || total != 3 {
		t.Fatalf("List = %d, %v", total, err)
	}
	if all[0].ID != jobs[2].ID {
		t.Error("jobs should be listed newest first")
	}

	printed := model.JobStatusPrinted
	got, total, _ := repo.List(ctx, &JobFilter{Status: &printed})
	if total != 2 || len(got) != 2 {
		t.Errorf("status filter returned %d", total)
	}

	page, total, _ := repo.List(ctx, &JobFilter{Page: 2, PerPage: 2})
	if total != 3 || len(page) != 1 || page[0].ID != jobs[0].ID {
		t.Errorf("second page = %d items of %d", len(page), total)
	}
}

func TestMemoryCapacityAndCleanup(t *testing.T) {
	repo := NewMemoryJobRepository(2)
	ctx := context.Background()

	old := job(model.JobSourceEvent, model.JobStatusPrinted, model.TransportNetwork, time.Hour)
	mid := job(model.JobSourceEvent, model.JobStatusPrinted, model.TransportNetwork, 30*time.Minute)
	recent := job(model.JobSourceEvent, model.JobStatusRejected, model.TransportNone, 0)
	for _, j := range []*model.PrintJob{old, mid, recent} {
		if err := repo.Create(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := repo.GetByID(ctx, old.ID); !errors.Is(err, ErrJobNotFound) {
		t.Fatal("oldest job should have been evicted")
	}

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().Add(-10*time.Minute))
	if err != nil || deleted != 1 {
		t.Fatalf("DeleteOlderThan = %d, %v", deleted, err)
	}

	stats, err := repo.GetStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalJobs != 1 || stats.RejectedJobs != 1 || stats.ByTransport[model.TransportNone] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
