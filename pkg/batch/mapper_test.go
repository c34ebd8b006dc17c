package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costray/costray/pkg/protocol"
	"github.com/costray/costray/pkg/testutil"
)

func catalog() []protocol.Unit {
	pairs := [][2]string{
		{"ec2", "compute"},
		{"cloudfront", "cdn"},
		{"rds", "database"},
		{"route53", "dns"},
		{"s3", "storage"},
		{"sns", "messaging"},
		{"sqs", "messaging"},
		{"lambda", "serverless"},
		{"waf", "security"},
	}

	units := make([]protocol.Unit, 0, len(pairs))
	for _, pair := range pairs {
		units = append(units, testutil.NewFakeUnit(pair[0], pair[1]))
	}

	return units
}

func unitNames(b Batch) []string {
	names := make([]string, 0, len(b.Units))
	for _, u := range b.Units {
		names = append(names, u.Name())
	}

	return names
}

func TestMapper_PriorityUnitsFormBatchZero(t *testing.T) {
	mapper := NewMapper(nil)

	batches := mapper.Partition(catalog(), 2)
	require.NotEmpty(t, batches)

	assert.Equal(t, 0, batches[0].ID)
	assert.Equal(t, []string{"ec2", "rds", "s3", "lambda"}, unitNames(batches[0]))
}

func TestMapper_RemainderChunkedSequentially(t *testing.T) {
	mapper := NewMapper(nil)

	batches := mapper.Partition(catalog(), 2)
	require.Len(t, batches, 4)

	assert.Equal(t, []string{"cloudfront", "route53"}, unitNames(batches[1]))
	assert.Equal(t, []string{"sns", "sqs"}, unitNames(batches[2]))
	assert.Equal(t, []string{"waf"}, unitNames(batches[3]))

	for i, b := range batches {
		assert.Equal(t, i, b.ID)
	}
}

func TestMapper_NoPriorityUnits(t *testing.T) {
	mapper := NewMapper([]string{"nonexistent"})

	batches := mapper.Partition(catalog(), 4)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0].Units, 4)
	assert.Equal(t, 0, batches[0].ID)
}

func TestMapper_CustomPriorityCategories(t *testing.T) {
	mapper := NewMapper([]string{"messaging"})

	batches := mapper.Partition(catalog(), 10)
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"sns", "sqs"}, unitNames(batches[0]))
	assert.Len(t, batches[1].Units, 7)
}

func TestMapper_EmptyCatalog(t *testing.T) {
	mapper := NewMapper(nil)

	assert.Empty(t, mapper.Partition(nil, 5))
}

func TestMapper_BatchSizeFloor(t *testing.T) {
	mapper := NewMapper([]string{"none"})

	batches := mapper.Partition(catalog(), 0)
	require.Len(t, batches, 9)

	for _, b := range batches {
		assert.Len(t, b.Units, 1)
	}
}
