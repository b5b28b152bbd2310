package scim

import "testing"

func TestPatchApplicator_Replace(t *testing.T) {
	tests := []struct {
		name      string
		ops       []PatchOperation
		checkFunc func(Document) bool
	}{
		{
			name: "replace active",
			ops:  []PatchOperation{{Op: "replace", Path: "active", Value: false}},
			checkFunc: func(d Document) bool {
				return d["active"] == false
			},
		},
		{
			name: "replace displayName",
			ops:  []PatchOperation{{Op: "replace", Path: "displayName", Value: "Jane Doe"}},
			checkFunc: func(d Document) bool {
				return d["displayName"] == "Jane Doe"
			},
		},
		{
			name: "replace root",
			ops:  []PatchOperation{{Op: "replace", Value: map[string]any{"active": false, "displayName": "Test"}}},
			checkFunc: func(d Document) bool {
				return d["active"] == false && d["displayName"] == "Test"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := Document{
				"userName":    "john.doe",
				"displayName": "John Doe",
				"active":      true,
			}
			pa := NewPatchApplicator(nil)
			got, err := pa.Apply(doc, tt.ops)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if !tt.checkFunc(got) {
				t.Errorf("patch did not apply correctly, got %+v", got)
			}
		})
	}
}

func TestPatchApplicator_Add(t *testing.T) {
	doc := Document{"userName": "john.doe", "emails": []any{}}
	ops := []PatchOperation{
		{
			Op:   "add",
			Path: "emails",
			Value: []any{
				map[string]any{"value": "john@example.com", "type": "work", "primary": true},
			},
		},
	}

	pa := NewPatchApplicator(nil)
	got, err := pa.Apply(doc, ops)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	emails, ok := got["emails"].([]any)
	if !ok || len(emails) != 1 {
		t.Fatalf("expected 1 email, got %v", got["emails"])
	}
	email := emails[0].(map[string]any)
	if email["value"] != "john@example.com" {
		t.Errorf("email value = %v, want john@example.com", email["value"])
	}
}

func TestPatchApplicator_Remove(t *testing.T) {
	doc := Document{"userName": "john.doe", "displayName": "John Doe", "active": true}
	ops := []PatchOperation{{Op: "remove", Path: "displayName"}}

	pa := NewPatchApplicator(nil)
	got, err := pa.Apply(doc, ops)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if _, present := got["displayName"]; present {
		t.Errorf("displayName should have been removed, got %v", got["displayName"])
	}
}

func TestPatchApplicator_ComplexPath(t *testing.T) {
	doc := Document{
		"userName": "john.doe",
		"emails": []any{
			map[string]any{"value": "john@work.com", "type": "work", "primary": true},
			map[string]any{"value": "john@home.com", "type": "home"},
		},
	}
	ops := []PatchOperation{{Op: "remove", Path: `emails[type eq "work"]`}}

	pa := NewPatchApplicator(nil)
	got, err := pa.Apply(doc, ops)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	emails := got["emails"].([]any)
	if len(emails) != 1 {
		t.Fatalf("expected 1 email after removal, got %d", len(emails))
	}
	if emails[0].(map[string]any)["type"] == "work" {
		t.Errorf("work email should be removed")
	}
}

func TestPatchApplicator_EmptyOpsIsIdentity(t *testing.T) {
	doc := Document{"userName": "john.doe"}
	pa := NewPatchApplicator(nil)
	got, err := pa.Apply(doc, nil)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if got["userName"] != "john.doe" {
		t.Errorf("document mutated by empty op list: %+v", got)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		name         string
		pathStr      string
		wantSegments int
		wantAttr     string
	}{
		{"simple", "userName", 1, "userName"},
		{"nested", "name.givenName", 2, "name"},
		{"filtered", `emails[type eq "work"]`, 1, "emails"},
		{"complex", `emails[type eq "work"].value`, 2, "emails"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := ParsePath(tt.pathStr)
			if err != nil {
				t.Fatalf("ParsePath() error = %v", err)
			}
			if len(path.Segments) != tt.wantSegments {
				t.Errorf("segments = %d, want %d", len(path.Segments), tt.wantSegments)
			}
			if path.Segments[0].Attribute != tt.wantAttr {
				t.Errorf("first attribute = %v, want %v", path.Segments[0].Attribute, tt.wantAttr)
			}
		})
	}
}
