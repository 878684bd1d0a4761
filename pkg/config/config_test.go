package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const sampleYAML = `
name: test-env
__maestro:
  schema: 2
ships:
  ship1:
    ip: 10.0.0.1
services:
  db:
    image: postgres:14
    instances:
      db-1:
        ship: ship1
  api:
    image: app:latest
    requires: [db]
    instances:
      api-1:
        ship: ship1
registries:
  quay:
    username: bot
    password: secret
audit: []
`

func TestParseBasic(t *testing.T) {
	doc, err := Parse([]byte(sampleYAML))
	assert.NoError(t, err)

	name, err := doc.Name()
	assert.NoError(t, err)
	assert.Equal(t, "test-env", name)
	assert.Equal(t, 2, doc.Schema())
	assert.Len(t, doc.Services(), 2)
	assert.Len(t, doc.Registries(), 1)
}

func TestParseMissingName(t *testing.T) {
	doc, err := Parse([]byte("services: {}\n"))
	assert.NoError(t, err)
	_, err = doc.Name()
	assert.Error(t, err)
}

func TestParseRejectsDuplicateKeys(t *testing.T) {
	const dup = `
name: test-env
name: other-name
`
	_, err := Parse([]byte(dup))
	assert.Error(t, err)
}

func TestParseRejectsNestedDuplicateKeys(t *testing.T) {
	const dup = `
name: test-env
services:
  db:
    image: postgres:14
    image: postgres:15
`
	_, err := Parse([]byte(dup))
	assert.Error(t, err)
}
