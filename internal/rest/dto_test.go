package rest_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/homelend/platform/internal/rest"
)

func TestMaskSSN(t *testing.T) {
	assert.Equal(t, "***-**-6789", rest.MaskSSN("123-45-6789"))
	assert.Equal(t, "***-**-6789", rest.MaskSSN("123456789"))
	assert.Equal(t, "***-**-****", rest.MaskSSN("123"))
	assert.Equal(t, "***-**-****", rest.MaskSSN(""))
}

func TestMaskDOB(t *testing.T) {
	dob := time.Date(1985, time.June, 15, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "1985-**-**", rest.MaskDOB(dob))
}
