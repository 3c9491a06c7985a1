package inputval

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/inventoryhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidate_Group(t *testing.T) {
	zero := int32(0)
	two := int32(2)
	tests := []struct {
		name   string
		group  models.Group
		fields []string
	}{
		{"valid", models.Group{Name: "Home", GroupCode: "ABCD1234"}, nil},
		{"valid with max", models.Group{Name: "Home", GroupCode: "ABCD1234", UserMax: &two}, nil},
		{"missing name", models.Group{GroupCode: "ABCD1234"}, []string{"name"}},
		{"short code", models.Group{Name: "Home", GroupCode: "ABC"}, []string{"groupCode"}},
		{"symbol in code", models.Group{Name: "Home", GroupCode: "ABCD-234"}, []string{"groupCode"}},
		{"zero max", models.Group{Name: "Home", GroupCode: "ABCD1234", UserMax: &zero}, []string{"userMax"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.group)
			got := Fields(err)
			if len(got) != len(tt.fields) {
				t.Fatalf("Fields = %v, want keys %v", got, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := got[f]; !ok {
					t.Errorf("missing field %q in %v", f, got)
				}
			}
		})
	}
}

func TestFields_NestedPath(t *testing.T) {
	item := models.Item{
		Name:   "Drill",
		ZoneID: primitive.NewObjectID(),
		Values: []models.ItemValue{{Name: "color", Value: "red"}, {Value: "x"}},
	}
	got := Fields(Validate(&item))
	if _, ok := got["values[1].name"]; !ok || len(got) != 1 {
		t.Errorf("Fields = %v", got)
	}
}

func TestMessage(t *testing.T) {
	msg := Message(Validate(&models.Group{}))
	if !strings.HasPrefix(msg, "groupCode: ") || !strings.Contains(msg, "name: This field is required") {
		t.Errorf("Message = %q", msg)
	}
	if Message(nil) != "" {
		t.Error("Message(nil) should be empty")
	}
}

func TestDecodeRequest(t *testing.T) {
	type body struct {
		Mail string `json:"mail" validate:"required,email"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mail":"a@b.co"}`))
	got, ok := DecodeRequest[body](rec, req)
	if !ok || got.Mail != "a@b.co" {
		t.Fatalf("DecodeRequest = %+v, %v", got, ok)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"mail":"nope"}`))
	if _, ok := DecodeRequest[body](rec, req); ok {
		t.Fatal("expected validation failure")
	}
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d", rec.Code)
	}
	var resp struct {
		Fields map[string]string `json:"fields"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Fields["mail"] != "Must be a valid email address" {
		t.Errorf("fields = %v", resp.Fields)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	if _, ok := DecodeRequest[body](rec, req); ok || rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: ok=%v status=%d", ok, rec.Code)
	}
}
