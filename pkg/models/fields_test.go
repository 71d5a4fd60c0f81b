package models

import (
	"encoding/json"
	"testing"
)

func TestFields_SetKeepsOrder(t *testing.T) {
	var f Fields
	f.Set("city", "Toronto")
	f.Set("address", "1 King St")
	f.Set("city", "Ottawa")

	if len(f) != 2 {
		t.Fatalf("len = %d, want 2", len(f))
	}
	if f[0].Key != "city" || f[0].Value != "Ottawa" {
		t.Errorf("f[0] = %+v, want city=Ottawa", f[0])
	}

	f.SetIfAbsent("city", "Montreal")
	if v, _ := f.Get("city"); v != "Ottawa" {
		t.Errorf("SetIfAbsent overwrote city: %q", v)
	}
}

func TestFields_JSONOrder(t *testing.T) {
	f := Fields{{Key: "zeta", Value: "1"}, {Key: "alpha", Value: "2"}}

	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"zeta":"1","alpha":"2"}` {
		t.Errorf("json = %s", b)
	}

	var back Fields
	if err := json.Unmarshal([]byte(`{"b":"x","a":7}`), &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 2 || back[0].Key != "b" || back[1].Value != "7" {
		t.Errorf("unmarshal = %+v", back)
	}
}

func TestFields_ScanNil(t *testing.T) {
	var f Fields
	if err := f.Scan(nil); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if f == nil || len(f) != 0 {
		t.Errorf("scan nil = %#v, want empty", f)
	}
}
