package roles

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cortex-community/cortex-engine/internal/chat/chattest"
	"github.com/cortex-community/cortex-engine/internal/guard"
	"github.com/cortex-community/cortex-engine/internal/points"
	"github.com/cortex-community/cortex-engine/internal/storage/storagetest"
)

func TestRotateAssignsVeteranToTopFive(t *testing.T) {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	pointsSvc := points.NewService(repo, guard.NewKeyedMutex())

	for i := 1; i <= 7; i++ {
		user := fmt.Sprintf("user-%d", i)
		gateway.AddMember(user, user)
		repo.SeedMember(user, i*10)
	}

	rotator := NewRotator(pointsSvc, gateway, "role-regular", "role-veteran", time.Hour)
	rotator.Rotate(context.Background())

	// Top five by points are user-7 down to user-3
	for i := 3; i <= 7; i++ {
		user := fmt.Sprintf("user-%d", i)
		if !gateway.HasRole(user, "role-veteran") {
			t.Errorf("expected %s to hold veteran", user)
		}
	}
	for i := 1; i <= 2; i++ {
		user := fmt.Sprintf("user-%d", i)
		if gateway.HasRole(user, "role-veteran") {
			t.Errorf("expected %s not to hold veteran", user)
		}
	}

	// Everyone fits within the regular slots
	for i := 1; i <= 7; i++ {
		user := fmt.Sprintf("user-%d", i)
		if !gateway.HasRole(user, "role-regular") {
			t.Errorf("expected %s to hold regular", user)
		}
	}
}

func TestRotateRemovesFallenHolders(t *testing.T) {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	pointsSvc := points.NewService(repo, guard.NewKeyedMutex())

	for i := 1; i <= 6; i++ {
		user := fmt.Sprintf("user-%d", i)
		gateway.AddMember(user, user)
		repo.SeedMember(user, i*10)
	}

	// user-0 held veteran from an earlier cycle but has no points now
	gateway.AddMember("user-0", "user-0")
	if err := gateway.AddRole(context.Background(), "user-0", "role-veteran"); err != nil {
		t.Fatalf("failed to seed role: %v", err)
	}

	rotator := NewRotator(pointsSvc, gateway, "", "role-veteran", time.Hour)
	rotator.Rotate(context.Background())

	if gateway.HasRole("user-0", "role-veteran") {
		t.Error("expected user-0 to lose veteran")
	}
	if !gateway.HasRole("user-6", "role-veteran") {
		t.Error("expected user-6 to keep veteran")
	}
}

func TestRotateSkipsUnconfiguredRoles(t *testing.T) {
	repo := storagetest.NewRepo()
	gateway := chattest.NewGateway()
	pointsSvc := points.NewService(repo, guard.NewKeyedMutex())

	gateway.AddMember("user-1", "user-1")
	repo.SeedMember("user-1", 10)

	rotator := NewRotator(pointsSvc, gateway, "", "", time.Hour)
	rotator.Rotate(context.Background())

	if gateway.HasRole("user-1", "") {
		t.Error("expected no role assignment with unconfigured role IDs")
	}
}
