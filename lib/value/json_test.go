package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromJSON(t *testing.T) {
	v, err := FromJSON([]byte(`{"inputCols": ["a", "b"], "threshold": 0.5, "dropLast": true, "numFeatures": 3, "missing": null}`))
	assert.NoError(t, err)
	d, ok := v.(Dict)
	assert.True(t, ok)
	assert.Equal(t, List{String("a"), String("b")}, d["inputCols"])
	assert.Equal(t, Double(0.5), d["threshold"])
	assert.Equal(t, Bool(true), d["dropLast"])
	assert.Equal(t, Int(3), d["numFeatures"])
	assert.Equal(t, Nil, d["missing"])

	_, err = FromJSON([]byte(`{"a": `))
	assert.Error(t, err)
}
