package render

import "testing"

func TestMergePatchWins(t *testing.T) {
	base := Record{"name": "Ada", "email": "old@b.com"}
	patch := Record{"email": "new@b.com", "phone": "123"}

	merged := base.Merge(patch)

	if merged["name"] != "Ada" {
		t.Fatalf("unset field must retain prior value, got %q", merged["name"])
	}
	if merged["email"] != "new@b.com" {
		t.Fatalf("received field must win, got %q", merged["email"])
	}
	if merged["phone"] != "123" {
		t.Fatalf("new field missing, got %v", merged)
	}
	if base["email"] != "old@b.com" {
		t.Fatalf("merge must not mutate base: %v", base)
	}
}

func TestWithFieldCopies(t *testing.T) {
	base := Record{"name": "Ada"}
	edited := base.WithField("name", "Grace")

	if edited["name"] != "Grace" {
		t.Fatalf("edit not applied: %v", edited)
	}
	if base["name"] != "Ada" {
		t.Fatalf("edit mutated prior snapshot: %v", base)
	}
}

func TestRecordFromJSONMapCoercion(t *testing.T) {
	rec := RecordFromJSONMap(map[string]any{
		"name":  "Ada",
		"score": float64(85),
		"note":  nil,
		"flag":  true,
	})

	cases := map[string]string{
		"name":  "Ada",
		"score": "85",
		"note":  "",
		"flag":  "true",
	}
	for key, want := range cases {
		if got := rec.Get(key); got != want {
			t.Fatalf("coerce %s: got %q want %q", key, got, want)
		}
	}
}

func TestGetOnNilRecord(t *testing.T) {
	var rec Record
	if rec.Get("anything") != "" {
		t.Fatal("nil record lookup must return empty string")
	}
}
