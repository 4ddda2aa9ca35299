package apperr

import "testing"

func TestFromResponsePrefersProblemDetail(t *testing.T) {
	body := []byte(`{"type":"about:blank","title":"Bad Request","status":400,"detail":"Email đã tồn tại","code":1001}`)
	err := FromResponse(400, body)
	if err.Code != 1001 || err.Message != "Email đã tồn tại" {
		t.Fatalf("unexpected error %+v", err)
	}
}

func TestFromResponseProblemFallsBackToTitleAndStatus(t *testing.T) {
	err := FromResponse(503, []byte(`{"title":"Service Unavailable","status":418}`))
	if err.Code != 418 || err.Message != "Service Unavailable" {
		t.Fatalf("unexpected error %+v", err)
	}

	err = FromResponse(500, []byte(`{"detail":"db down"}`))
	if err.Code != 500 || err.Message != "db down" {
		t.Fatalf("expected transport status as code, got %+v", err)
	}
}

func TestFromResponseLegacyEnvelope(t *testing.T) {
	err := FromResponse(400, []byte(`{"code":1002,"message":"User not found","result":null}`))
	if err.Kind != KindServer || err.Code != 1002 || err.Message != "User not found" {
		t.Fatalf("unexpected error %+v", err)
	}
}

func TestFromResponseRawText(t *testing.T) {
	err := FromResponse(502, []byte("upstream exploded\n"))
	if err.Code != 502 || err.Message != "upstream exploded" {
		t.Fatalf("unexpected error %+v", err)
	}

	err = FromResponse(404, nil)
	if err.Code != 404 || err.Message != "Not Found" {
		t.Fatalf("unexpected error for empty body %+v", err)
	}

	err = FromResponse(500, []byte(`{"unrelated":true}`))
	if err.Code != 500 || err.Message != `{"unrelated":true}` {
		t.Fatalf("unrecognized json should fall back to raw text, got %+v", err)
	}
}
