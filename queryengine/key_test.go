package queryengine

import (
	"net/url"
	"testing"
)

func TestComputeKeyIsOrderInsensitiveOverSearchParams(t *testing.T) {
	a := url.Values{"b": {"2"}, "a": {"1"}}
	b := url.Values{"a": {"1"}, "b": {"2"}}
	if computeKey("getPosts", "/posts", a) != computeKey("getPosts", "/posts", b) {
		t.Fatal("key should not depend on search param insertion order")
	}
}

func TestComputeKeyDiffersByDefinitionID(t *testing.T) {
	search := url.Values{"a": {"1"}}
	if computeKey("getPosts", "/posts", search) == computeKey("getUsers", "/posts", search) {
		t.Fatal("different definitions sharing a path should not collide")
	}
}

func TestComputeKeyDiffersByResolvedPath(t *testing.T) {
	if computeKey("getPost", "/posts/1", nil) == computeKey("getPost", "/posts/2", nil) {
		t.Fatal("different resolved paths should not collide")
	}
}
