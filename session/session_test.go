package session

import (
	"errors"
	"testing"

	"churn/resource"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResource struct {
	typ    resource.Type
	err    error
	closed *[]resource.Type
}

func (f fakeResource) Close() error {
	*f.closed = append(*f.closed, f.typ)
	return f.err
}

func (f fakeResource) Type() resource.Type {
	return f.typ
}

func TestCreateFromArgs(t *testing.T) {
	sess, err := CreateFromArgs(&SessionArgs{Master: "local[3]", AppName: "CreditCardCustomers"})
	require.NoError(t, err)
	assert.Equal(t, 3, sess.Parallelism)
	assert.Equal(t, "CreditCardCustomers", sess.AppName)
	assert.False(t, sess.Storage.S3.IsPresent())
	assert.False(t, sess.Closed())

	assert.NoError(t, sess.Close())
	assert.True(t, sess.Closed())
}

func TestCreateFromArgsUnsupportedMaster(t *testing.T) {
	_, err := CreateFromArgs(&SessionArgs{Master: "spark://localhost:7077", AppName: "x"})
	assert.Error(t, err)
}

func TestCloseReleasesInReverseOrderOnce(t *testing.T) {
	sess := NewTestSession(t, 1)
	var closed []resource.Type
	sess.register(fakeResource{typ: resource.TraceProvider, closed: &closed})
	sess.register(fakeResource{typ: resource.MetricsPusher, err: errors.New("gateway down"), closed: &closed})

	err := sess.Close()
	assert.ErrorContains(t, err, "gateway down")
	assert.Equal(t, []resource.Type{resource.MetricsPusher, resource.TraceProvider}, closed)

	// later calls return the first result without releasing again
	assert.Equal(t, err, sess.Close())
	assert.Len(t, closed, 2)
	assert.True(t, sess.Closed())
}
