package s3blob

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

func TestNamespacing(t *testing.T) {
	c := &Client{prefix: normalisePrefix("/prod/truthpool/")}
	assert.Equal(t, "prod/truthpool/settlements/market-1.json", c.key("/settlements/market-1.json"))
	assert.Equal(t, "settlements/market-1.json", c.path("prod/truthpool/settlements/market-1.json"))

	bare := &Client{prefix: normalisePrefix("")}
	assert.Equal(t, "evidence/submission-0.json", bare.key("evidence/submission-0.json"))
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("s3.example.com", true))
	assert.Equal(t, "https://r2.example", normaliseEndpoint("https://r2.example", false))
}

func TestWrapNotFound(t *testing.T) {
	assert.NoError(t, wrapNotFound(nil))
	assert.ErrorIs(t, wrapNotFound(fmt.Errorf("op: %w", &types.NoSuchKey{})), domain.ErrNotFound)
	assert.ErrorIs(t, wrapNotFound(&types.NotFound{}), domain.ErrNotFound)

	other := errors.New("access denied")
	assert.NotErrorIs(t, wrapNotFound(other), domain.ErrNotFound)
}

func TestContentTypeOf(t *testing.T) {
	assert.Equal(t, contentTypeJSONL, contentTypeOf("settlements/market-1.jsonl"))
	assert.Equal(t, contentTypeJSON, contentTypeOf("settlements/market-1.json"))
	assert.Empty(t, contentTypeOf("notes.txt"))
}
