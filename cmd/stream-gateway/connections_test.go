package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionKeysAreStableAndNamespaced(t *testing.T) {
	assert.Equal(t, "ENTITY#post:1", connectionPK("post:1"))
	assert.Equal(t, "CONNECTION#abc123", connectionSK("abc123"))
	assert.NotEqual(t, connectionPK("post:1"), connectionSK("post:1"))
}

func TestEntityPatchRoundTripsThroughJSON(t *testing.T) {
	original := entityPatch{EntityID: "post:1", Patch: map[string]interface{}{"title": "Hello"}}
	raw, err := json.Marshal(original)
	assert.NoError(t, err)

	var decoded entityPatch
	assert.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, original.EntityID, decoded.EntityID)
	assert.Equal(t, original.Patch["title"], decoded.Patch["title"])
}
