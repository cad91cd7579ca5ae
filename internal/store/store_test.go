package store_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	_ "modernc.org/sqlite"

	"torrank/internal/customrule"
	"torrank/internal/rulegroup"
	"torrank/internal/rules"
	"torrank/internal/services"
	"torrank/internal/store"
	"torrank/internal/testsupport"
)

func TestGroupsRoundTripInInsertionOrder(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	input := []rulegroup.Group{
		{Name: "zeta", RuleString: "4K > 1080P"},
		{Name: "alpha", RuleString: "!BLU", MediaType: rulegroup.MediaMovie},
		{Name: "anime", RuleString: "CN", MediaType: rulegroup.MediaTV, Category: "动漫"},
	}
	for _, g := range input {
		if err := s.SaveGroup(ctx, g); err != nil {
			t.Fatalf("SaveGroup(%s): %v", g.Name, err)
		}
	}

	// Updating keeps position.
	if err := s.SaveGroup(ctx, rulegroup.Group{Name: "zeta", RuleString: "4K"}); err != nil {
		t.Fatalf("SaveGroup update: %v", err)
	}
	input[0].RuleString = "4K"

	got, err := s.Groups(ctx)
	if err != nil {
		t.Fatalf("Groups: %v", err)
	}
	if diff := cmp.Diff(input, got); diff != "" {
		t.Fatalf("unexpected groups (-want +got):\n%s", diff)
	}

	one, err := s.Group(ctx, "anime")
	if err != nil || one == nil || one.Category != "动漫" {
		t.Fatalf("Group(anime) = %#v, %v", one, err)
	}
	missing, err := s.Group(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing group, got %#v, %v", missing, err)
	}
}

func TestSaveGroupValidates(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	err := s.SaveGroup(context.Background(), rulegroup.Group{Name: "  "})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteGroup(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := s.SaveGroup(ctx, rulegroup.Group{Name: "tv", RuleString: "WEB-DL"}); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}
	if err := s.DeleteGroup(ctx, "tv"); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if err := s.DeleteGroup(ctx, "tv"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestCustomRules(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	saved, created, err := s.SaveCustomRule(ctx, customrule.Rule{ID: "atmos", Name: "Atmos audio", Include: "atmos"})
	if err != nil || !created {
		t.Fatalf("SaveCustomRule: created=%v err=%v", created, err)
	}
	if saved.ID != "ATMOS" {
		t.Fatalf("expected canonical id, got %q", saved.ID)
	}
	generated, _, err := s.SaveCustomRule(ctx, customrule.Rule{SizeRange: "1000-8000"})
	if err != nil {
		t.Fatalf("SaveCustomRule without id: %v", err)
	}
	if generated.ID == "" {
		t.Fatal("expected generated id")
	}

	if _, _, err := s.SaveCustomRule(ctx, customrule.Rule{ID: "bad", Include: "("}); !errors.Is(err, rules.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}

	list, err := s.CustomRules(ctx)
	if err != nil {
		t.Fatalf("CustomRules: %v", err)
	}
	if diff := cmp.Diff([]customrule.Rule{saved, generated}, list); diff != "" {
		t.Fatalf("unexpected custom rules (-want +got):\n%s", diff)
	}

	if err := s.DeleteCustomRule(ctx, "Atmos"); err != nil {
		t.Fatalf("DeleteCustomRule: %v", err)
	}
	if err := s.DeleteCustomRule(ctx, "atmos"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSaveCustomRuleUpdateKeepsOrder(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, id := range []string{"first", "second"} {
		if _, created, err := s.SaveCustomRule(ctx, customrule.Rule{ID: id, Include: id}); err != nil || !created {
			t.Fatalf("SaveCustomRule(%s): created=%v err=%v", id, created, err)
		}
	}
	updated, created, err := s.SaveCustomRule(ctx, customrule.Rule{ID: "First", Include: "uno"})
	if err != nil {
		t.Fatalf("SaveCustomRule update: %v", err)
	}
	if created {
		t.Fatal("expected update to report created=false")
	}
	list, err := s.CustomRules(ctx)
	if err != nil {
		t.Fatalf("CustomRules: %v", err)
	}
	if diff := cmp.Diff([]string{"FIRST", "SECOND"}, customIDs(list)); diff != "" {
		t.Fatalf("order changed (-want +got):\n%s", diff)
	}
	if list[0] != updated {
		t.Fatalf("update not stored: %+v", list[0])
	}
}

func TestRemoveCustomRuleRestoresOnFailedVerify(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	for _, id := range []string{"first", "second"} {
		if _, _, err := s.SaveCustomRule(ctx, customrule.Rule{ID: id, Name: id + " rule", Include: id}); err != nil {
			t.Fatalf("SaveCustomRule(%s): %v", id, err)
		}
	}
	before, err := s.CustomRules(ctx)
	if err != nil {
		t.Fatalf("CustomRules: %v", err)
	}

	referenced := errors.New("FIRST is used by group all")
	verified := false
	err = s.RemoveCustomRule(ctx, "first", func(ctx context.Context) error {
		verified = true
		remaining, err := s.CustomRules(ctx)
		if err != nil {
			return err
		}
		if diff := cmp.Diff([]string{"SECOND"}, customIDs(remaining)); diff != "" {
			t.Errorf("rule not deleted during verify (-want +got):\n%s", diff)
		}
		return referenced
	})
	if !verified {
		t.Fatal("verify not called")
	}
	if !errors.Is(err, services.ErrValidation) || !errors.Is(err, referenced) {
		t.Fatalf("expected validation error wrapping verify failure, got %v", err)
	}

	after, err := s.CustomRules(ctx)
	if err != nil {
		t.Fatalf("CustomRules: %v", err)
	}
	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("restore changed rules (-want +got):\n%s", diff)
	}

	if err := s.RemoveCustomRule(ctx, "ＦＩＲＳＴ", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("RemoveCustomRule: %v", err)
	}
	if err := s.RemoveCustomRule(ctx, "first", nil); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func customIDs(list []customrule.Rule) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}

func TestHealth(t *testing.T) {
	s := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if err := s.SaveGroup(ctx, rulegroup.Group{Name: "all", RuleString: "4K"}); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}
	health, err := s.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Groups != 1 || health.CustomRules != 0 || health.SchemaVersion != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
}

func TestOpenMigratesAndRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torrank.db")
	s, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := s.SaveGroup(context.Background(), rulegroup.Group{Name: "all", RuleString: "4K"}); err != nil {
		t.Fatalf("SaveGroup: %v", err)
	}
	s.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil || version != 1 {
		t.Fatalf("user_version = %d, err %v", version, err)
	}
	db.Close()

	reopened, err := store.OpenPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	groups, err := reopened.Groups(context.Background())
	if err != nil || len(groups) != 1 {
		t.Fatalf("expected group kept across reopen, got %v (err %v)", groups, err)
	}
	reopened.Close()

	db, err = sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := store.OpenPath(path); !errors.Is(err, store.ErrNewerSchema) {
		t.Fatalf("expected newer schema error, got %v", err)
	}
}
