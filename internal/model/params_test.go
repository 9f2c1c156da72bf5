package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParamsIsValid(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, "json", p.DataFormat)
	assert.Equal(t, "tls", p.Encryption)
	assert.Equal(t, 1024*1024, p.MaxMessageSize)
	assert.Equal(t, 30000, p.TimeoutMS)
}

func TestClassifyCompatibility(t *testing.T) {
	a := DefaultParams()
	b := DefaultParams()
	assert.Equal(t, CompatibilityCompatible, a.ClassifyCompatibility(b))

	b.TimeoutMS = 5000
	assert.Equal(t, CompatibilityNegotiable, a.ClassifyCompatibility(b))

	none := DefaultParams()
	none.Encryption = "none"
	assert.Equal(t, CompatibilityIncompatible, a.ClassifyCompatibility(none))
}

func TestMergeWithCommutativeFields(t *testing.T) {
	a := DefaultParams()
	a.MaxMessageSize = 2048
	a.TimeoutMS = 10000
	a.Streaming = true
	a.MaxRetries = 5
	a.Priority = 8

	b := DefaultParams()
	b.MaxMessageSize = 4096
	b.TimeoutMS = 20000
	b.Streaming = false
	b.MaxRetries = 2
	b.Priority = 3

	ab := a.MergeWith(b)
	ba := b.MergeWith(a)

	assert.Equal(t, ab.MaxMessageSize, ba.MaxMessageSize)
	assert.Equal(t, ab.TimeoutMS, ba.TimeoutMS)
	assert.Equal(t, ab.Streaming, ba.Streaming)
	assert.Equal(t, ab.MaxRetries, ba.MaxRetries)
	assert.Equal(t, ab.Priority, ba.Priority)

	assert.Equal(t, min(2048, 4096), ab.MaxMessageSize)
	assert.Equal(t, min(10000, 20000), ab.TimeoutMS)
	assert.False(t, ab.Streaming)
	assert.Equal(t, max(5, 2), ab.MaxRetries)
	assert.Equal(t, max(8, 3), ab.Priority)
}

func TestMergeWithPreferredSideFields(t *testing.T) {
	a := DefaultParams()
	a.DataFormat = "protobuf"
	a.RetryPolicy = "fixed_delay"

	b := DefaultParams()
	b.DataFormat = "cbor"
	b.RetryPolicy = "exponential_backoff"

	merged := a.MergeWith(b)
	assert.Equal(t, "protobuf", merged.DataFormat)
	assert.Equal(t, "fixed_delay", merged.RetryPolicy)
}

func TestMergeWithCompressionRequiresAgreement(t *testing.T) {
	a := DefaultParams()
	a.Compression = "gzip"
	b := DefaultParams()
	b.Compression = "zstd"

	merged := a.MergeWith(b)
	assert.Equal(t, "null", merged.Compression, "disagreeing non-null compression must not silently pick a side")

	b.Compression = "gzip"
	merged = a.MergeWith(b)
	assert.Equal(t, "gzip", merged.Compression, "matching non-null compression should be kept")

	b.Compression = "null"
	merged = a.MergeWith(b)
	assert.Equal(t, "null", merged.Compression)
}

func TestMergeWithCustomParamsPreferredSideWins(t *testing.T) {
	a := DefaultParams()
	a.CustomParams = map[string]interface{}{"shared": "a", "only_a": 1}
	b := DefaultParams()
	b.CustomParams = map[string]interface{}{"shared": "b", "only_b": 2}

	merged := a.MergeWith(b)
	assert.Equal(t, "a", merged.CustomParams["shared"])
	assert.Equal(t, 1, merged.CustomParams["only_a"])
	assert.Equal(t, 2, merged.CustomParams["only_b"])
}

func TestNegotiableParamsCloneIsIndependent(t *testing.T) {
	p := DefaultParams()
	p.CustomParams = map[string]interface{}{"k": "v"}

	clone := p.Clone()
	clone.CustomParams["k"] = "mutated"

	assert.Equal(t, "v", p.CustomParams["k"])
	assert.Equal(t, "mutated", clone.CustomParams["k"])

	var nilParams *NegotiableParams
	assert.Nil(t, nilParams.Clone())
}
