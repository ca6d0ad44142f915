package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"coaching-platform/backend/internal/mfa/domain"
)

func enabledEnrollment(userID string, hashes ...string) *domain.Enrollment {
	now := time.Now().UTC()
	return &domain.Enrollment{
		UserID:          userID,
		EncryptedSecret: "iv:ct",
		BackupCodes:     hashes,
		VerifiedAt:      &now,
		UpdatedAt:       now,
	}
}

func TestMemoryRepository_EnableOnce(t *testing.T) {
	r := NewMemoryRepository(nil)
	ctx := context.Background()

	got, err := r.GetByUserID(ctx, "u1")
	if err != nil || got != nil {
		t.Fatalf("GetByUserID before enable = %v, %v; want nil, nil", got, err)
	}
	if err := r.Enable(ctx, enabledEnrollment("u1", "h1", "h2")); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := r.Enable(ctx, enabledEnrollment("u1", "h3")); !errors.Is(err, domain.ErrAlreadyEnabled) {
		t.Errorf("second Enable err = %v, want ErrAlreadyEnabled", err)
	}
	got, _ = r.GetByUserID(ctx, "u1")
	if !got.Enabled || len(got.BackupCodes) != 2 || got.EncryptedSecret != "iv:ct" {
		t.Errorf("enrollment = %+v", got)
	}
}

func TestMemoryRepository_GetReturnsCopy(t *testing.T) {
	r := NewMemoryRepository(nil)
	ctx := context.Background()
	_ = r.Enable(ctx, enabledEnrollment("u1", "h1"))
	got, _ := r.GetByUserID(ctx, "u1")
	got.BackupCodes[0] = "tampered"
	again, _ := r.GetByUserID(ctx, "u1")
	if again.BackupCodes[0] != "h1" {
		t.Error("mutating a returned enrollment must not change the store")
	}
}

func TestMemoryRepository_ConsumeBackupCode(t *testing.T) {
	r := NewMemoryRepository(nil)
	ctx := context.Background()
	_ = r.Enable(ctx, enabledEnrollment("u1", "h1", "h2"))

	remaining, err := r.ConsumeBackupCode(ctx, "u1", "h1")
	if err != nil || remaining != 1 {
		t.Fatalf("ConsumeBackupCode = %d, %v; want 1, nil", remaining, err)
	}
	if _, err := r.ConsumeBackupCode(ctx, "u1", "h1"); !errors.Is(err, domain.ErrBackupCodeUsed) {
		t.Errorf("replay err = %v, want ErrBackupCodeUsed", err)
	}
	got, _ := r.GetByUserID(ctx, "u1")
	if len(got.UsedBackupCodes) != 1 || got.UsedBackupCodes[0] != "h1" {
		t.Errorf("used = %v, want [h1]", got.UsedBackupCodes)
	}
	if _, err := r.ConsumeBackupCode(ctx, "nobody", "h1"); !errors.Is(err, domain.ErrBackupCodeUsed) {
		t.Errorf("unknown user err = %v", err)
	}
}

func TestMemoryRepository_ReplaceAndDisable(t *testing.T) {
	r := NewMemoryRepository(nil)
	ctx := context.Background()
	now := time.Now()

	if err := r.ReplaceBackupCodes(ctx, "u1", []string{"x"}, now); !errors.Is(err, domain.ErrNotEnabled) {
		t.Errorf("replace before enable err = %v, want ErrNotEnabled", err)
	}
	_ = r.Enable(ctx, enabledEnrollment("u1", "h1", "h2"))
	_, _ = r.ConsumeBackupCode(ctx, "u1", "h1")

	if err := r.ReplaceBackupCodes(ctx, "u1", []string{"n1", "n2", "n3"}, now); err != nil {
		t.Fatalf("ReplaceBackupCodes: %v", err)
	}
	got, _ := r.GetByUserID(ctx, "u1")
	if len(got.BackupCodes) != 3 || len(got.UsedBackupCodes) != 0 {
		t.Errorf("after replace unused=%v used=%v", got.BackupCodes, got.UsedBackupCodes)
	}

	if err := r.Disable(ctx, "u1", now); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	got, _ = r.GetByUserID(ctx, "u1")
	if got == nil {
		t.Fatal("disable must keep the row")
	}
	if got.Enabled || got.HasSecret() || len(got.BackupCodes) != 0 || got.VerifiedAt != nil {
		t.Errorf("after disable = %+v", got)
	}
	if err := r.Disable(ctx, "u1", now); !errors.Is(err, domain.ErrNotEnabled) {
		t.Errorf("second Disable err = %v, want ErrNotEnabled", err)
	}
	if err := r.Enable(ctx, enabledEnrollment("u1", "h9")); err != nil {
		t.Errorf("re-enable after disable: %v", err)
	}
}
