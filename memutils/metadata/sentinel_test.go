package metadata_test

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/memutils/metadata"
)

func newSentinel(t *testing.T, elementSize, capacity int) *metadata.SentinelBlockMetadata {
	t.Helper()

	sentinel := metadata.NewSentinelBlockMetadata(elementSize)
	err := sentinel.Init(make([]byte, capacity))
	require.NoError(t, err)
	return sentinel
}

func headers(sentinel *metadata.SentinelBlockMetadata) string {
	var values []string
	end := sentinel.End()
	for c := sentinel.Begin(); !c.Equal(end); c = c.Next() {
		values = append(values, strconv.Itoa(c.Value()))
	}
	return strings.Join(values, " ")
}

func alloc(t *testing.T, sentinel *metadata.SentinelBlockMetadata, size int) int {
	t.Helper()

	success, request, err := sentinel.CreateAllocationRequest(size)
	require.NoError(t, err)
	require.True(t, success)

	err = sentinel.Alloc(request)
	require.NoError(t, err)
	require.NoError(t, sentinel.Validate())

	return request.PayloadOffset()
}

func TestSentinelInit(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	require.Equal(t, "992", headers(sentinel))
	require.Equal(t, 1000, sentinel.Size())
	require.Equal(t, 992, sentinel.SumFreeSize())
	require.Equal(t, 1, sentinel.FreeRegionsCount())
	require.Equal(t, 0, sentinel.AllocationCount())
	require.True(t, sentinel.IsEmpty())
	require.NoError(t, sentinel.Validate())

	footer, err := sentinel.Word(996)
	require.NoError(t, err)
	require.Equal(t, 992, footer)
}

func TestSentinelInitInvalidConfiguration(t *testing.T) {
	testCases := map[string]struct {
		elementSize int
		capacity    int
	}{
		"TooSmall":       {elementSize: 8, capacity: 12},
		"Unaligned":      {elementSize: 8, capacity: 1001},
		"EmptyElement":   {elementSize: 0, capacity: 1000},
		"RoundedElement": {elementSize: 9, capacity: 16},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			sentinel := metadata.NewSentinelBlockMetadata(testCase.elementSize)
			err := sentinel.Init(make([]byte, testCase.capacity))
			require.ErrorIs(t, err, memutils.ErrInvalidConfiguration)
		})
	}
}

func TestSentinelInitSmallestPool(t *testing.T) {
	sentinel := newSentinel(t, 8, 16)
	require.Equal(t, "8", headers(sentinel))

	alloc(t, sentinel, 8)
	require.Equal(t, "-8", headers(sentinel))

	success, _, err := sentinel.CreateAllocationRequest(8)
	require.NoError(t, err)
	require.False(t, success)
}

func TestSentinelScenario(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 5*8)
	require.Equal(t, "-40 944", headers(sentinel))

	alloc(t, sentinel, 3*8)
	require.Equal(t, "-40 -24 912", headers(sentinel))

	err := sentinel.Free(first, 5*8)
	require.NoError(t, err)
	require.NoError(t, sentinel.Validate())
	require.Equal(t, "40 -24 912", headers(sentinel))
}

func TestSentinelCoalesceLeft(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 5*8)
	second := alloc(t, sentinel, 3*8)
	alloc(t, sentinel, 3*8)
	require.Equal(t, "-40 -24 -24 880", headers(sentinel))

	require.NoError(t, sentinel.Free(first, 5*8))
	require.NoError(t, sentinel.Free(second, 3*8))
	require.NoError(t, sentinel.Validate())
	require.Equal(t, "72 -24 880", headers(sentinel))
	require.Equal(t, 2, sentinel.FreeRegionsCount())
	require.Equal(t, 952, sentinel.SumFreeSize())
}

func TestSentinelCoalesceRight(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 5*8)
	second := alloc(t, sentinel, 3*8)
	require.Equal(t, "-40 -24 912", headers(sentinel))

	require.NoError(t, sentinel.Free(second, 3*8))
	require.Equal(t, "-40 944", headers(sentinel))

	require.NoError(t, sentinel.Free(first, 5*8))
	require.Equal(t, "992", headers(sentinel))
	require.True(t, sentinel.IsEmpty())
	require.NoError(t, sentinel.Validate())
}

func TestSentinelCoalesceBothSides(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 8)
	second := alloc(t, sentinel, 16)
	third := alloc(t, sentinel, 24)
	alloc(t, sentinel, 32)
	require.Equal(t, "-8 -16 -24 -32 880", headers(sentinel))

	require.NoError(t, sentinel.Free(first, 8))
	require.NoError(t, sentinel.Free(third, 24))
	require.Equal(t, "8 -16 24 -32 880", headers(sentinel))

	require.NoError(t, sentinel.Free(second, 16))
	require.Equal(t, "64 -32 880", headers(sentinel))
	require.NoError(t, sentinel.Validate())
}

func TestSentinelFreeClearsMergedRegion(t *testing.T) {
	sentinel := newSentinel(t, 8, 64)

	first := alloc(t, sentinel, 8)
	second := alloc(t, sentinel, 8)
	require.Equal(t, "-8 -8 24", headers(sentinel))

	require.NoError(t, sentinel.Free(first, 8))
	require.NoError(t, sentinel.Free(second, 8))
	require.Equal(t, "56", headers(sentinel))

	for offset := metadata.WordSize; offset < 60; offset += metadata.WordSize {
		word, err := sentinel.Word(offset)
		require.NoError(t, err)
		require.Zero(t, word, "offset %d", offset)
	}
}

func TestSentinelGrantWholeBlock(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	// 992 - 984 - 8 leaves nothing, so the whole block is granted
	offset := alloc(t, sentinel, 123*8)
	require.Equal(t, "-992", headers(sentinel))
	require.Equal(t, 0, sentinel.FreeRegionsCount())

	require.NoError(t, sentinel.Free(offset, 123*8))
	require.Equal(t, "992", headers(sentinel))
}

func TestSentinelGrantExactFit(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	alloc(t, sentinel, 124*8)
	require.Equal(t, "-992", headers(sentinel))
	require.Equal(t, 0, sentinel.Begin().Next().Prev().Offset())
	require.True(t, sentinel.Begin().Next().Equal(sentinel.End()))
}

func TestSentinelSplitThreshold(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	// 992 - 976 - 8 = 8: exactly one element remains, so the block is split
	alloc(t, sentinel, 122*8)
	require.Equal(t, "-976 8", headers(sentinel))
	require.NoError(t, sentinel.Validate())
}

func TestSentinelRoundsToWordSize(t *testing.T) {
	sentinel := newSentinel(t, 3, 100)

	offset := alloc(t, sentinel, 2*3)
	require.Equal(t, "-8 76", headers(sentinel))

	require.NoError(t, sentinel.Free(offset, 2*3))
	require.Equal(t, "92", headers(sentinel))
}

func TestSentinelMinimumPayload(t *testing.T) {
	sentinel := newSentinel(t, 16, 200)

	// A 4-byte request still occupies a full element so freeing it cannot create a sub-element fragment
	offset := alloc(t, sentinel, 4)
	require.Equal(t, "-16 168", headers(sentinel))
	alloc(t, sentinel, 16)

	require.NoError(t, sentinel.Free(offset, 4))
	require.NoError(t, sentinel.Validate())
	require.Equal(t, "16 -16 144", headers(sentinel))
}

func TestSentinelFirstFit(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 80)
	alloc(t, sentinel, 8)
	third := alloc(t, sentinel, 40)
	alloc(t, sentinel, 8)
	require.NoError(t, sentinel.Free(first, 80))
	require.NoError(t, sentinel.Free(third, 40))
	require.Equal(t, "80 -8 40 -8 824", headers(sentinel))

	// Both the 80-byte and 40-byte holes fit; the lowest offset wins
	offset := alloc(t, sentinel, 40)
	require.Equal(t, first, offset)
	require.Equal(t, "-40 32 -8 40 -8 824", headers(sentinel))

	// Only the third hole fits now
	offset = alloc(t, sentinel, 40)
	require.Equal(t, third, offset)
	require.Equal(t, "-40 32 -8 -40 -8 824", headers(sentinel))
}

func TestSentinelOutOfMemory(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	success, _, err := sentinel.CreateAllocationRequest(125 * 8)
	require.NoError(t, err)
	require.False(t, success)

	alloc(t, sentinel, 100*8)
	before := headers(sentinel)

	success, _, err = sentinel.CreateAllocationRequest(100 * 8)
	require.NoError(t, err)
	require.False(t, success)
	require.Equal(t, before, headers(sentinel))

	success, _, err = sentinel.CreateAllocationRequest(math.MaxInt)
	require.NoError(t, err)
	require.False(t, success)
}

func TestSentinelInvalidAllocationSize(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	_, _, err := sentinel.CreateAllocationRequest(0)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, _, err = sentinel.CreateAllocationRequest(-8)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
}

func TestSentinelStaleRequest(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	success, request, err := sentinel.CreateAllocationRequest(40)
	require.NoError(t, err)
	require.True(t, success)

	require.NoError(t, sentinel.Alloc(request))
	require.Error(t, sentinel.Alloc(request))
	require.Equal(t, "-40 944", headers(sentinel))
	require.NoError(t, sentinel.Validate())
}

func TestSentinelForgedRequest(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	err := sentinel.Alloc(metadata.AllocationRequest{BlockOffset: 0, BlockSize: 992, Size: 40, Remainder: 900})
	require.Error(t, err)

	err = sentinel.Alloc(metadata.AllocationRequest{BlockOffset: 0, BlockSize: 992, Size: 40})
	require.Error(t, err)

	err = sentinel.Alloc(metadata.AllocationRequest{BlockOffset: 2, BlockSize: 992, Size: 992})
	require.Error(t, err)

	require.Equal(t, "992", headers(sentinel))
}

func TestSentinelFreeInvalidArgument(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 40)
	second := alloc(t, sentinel, 24)
	before := headers(sentinel)

	testCases := map[string]struct {
		offset int
		size   int
	}{
		"WrongSize":        {offset: first, size: 24},
		"LargerSize":       {offset: first, size: 48},
		"ZeroSize":         {offset: first, size: 0},
		"InsidePayload":    {offset: first + 8, size: 8},
		"Unaligned":        {offset: first + 1, size: 40},
		"Negative":         {offset: -4, size: 40},
		"PastEnd":          {offset: 1000, size: 8},
		"FreeBlock":        {offset: second + 24 + metadata.BlockOverhead, size: 8},
		"SecondAsFirst":    {offset: second, size: 40},
		"HeaderNotPayload": {offset: 0, size: 40},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			err := sentinel.Free(testCase.offset, testCase.size)
			require.ErrorIs(t, err, memutils.ErrInvalidArgument)
			require.Equal(t, before, headers(sentinel))
			require.NoError(t, sentinel.Validate())
		})
	}
}

func TestSentinelFreeTwice(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 40)
	alloc(t, sentinel, 24)

	require.NoError(t, sentinel.Free(first, 40))
	require.ErrorIs(t, sentinel.Free(first, 40), memutils.ErrInvalidArgument)
	require.Equal(t, "40 -24 912", headers(sentinel))
}

func TestSentinelFreeRejectsPayloadLookalike(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	first := alloc(t, sentinel, 40)

	// Forge a header/footer pair inside the payload of the first block
	require.NoError(t, sentinel.SetWord(first+8, -8))
	require.NoError(t, sentinel.SetWord(first+20, -8))

	err := sentinel.Free(first+12, 8)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
	require.NoError(t, sentinel.Validate())
}

func TestSentinelValidateCorruption(t *testing.T) {
	testCases := map[string]func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int){
		"HeaderChanged": func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int) {
			require.NoError(t, sentinel.SetWord(payload-metadata.WordSize, -72))
		},
		"FooterChanged": func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int) {
			require.NoError(t, sentinel.SetWord(payload+80, -72))
		},
		"AdjacentFree": func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int) {
			require.NoError(t, sentinel.SetWord(payload-metadata.WordSize, 80))
			require.NoError(t, sentinel.SetWord(payload+80, 80))
		},
		"Overshoot": func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int) {
			require.NoError(t, sentinel.SetWord(payload-metadata.WordSize, 1000))
		},
		"EmptyPayload": func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int) {
			require.NoError(t, sentinel.SetWord(payload-metadata.WordSize, 0))
		},
		"UnalignedPayload": func(t *testing.T, sentinel *metadata.SentinelBlockMetadata, payload int) {
			require.NoError(t, sentinel.SetWord(payload-metadata.WordSize, -82))
		},
	}

	for name, corrupt := range testCases {
		t.Run(name, func(t *testing.T) {
			sentinel := newSentinel(t, 8, 1000)
			payload := alloc(t, sentinel, 80)
			require.True(t, memutils.IsValid(sentinel))

			corrupt(t, sentinel, payload)
			require.Error(t, sentinel.Validate())
			require.False(t, memutils.IsValid(sentinel))
		})
	}
}

func TestSentinelValidateSubElementFragment(t *testing.T) {
	sentinel := newSentinel(t, 16, 1000)
	payload := alloc(t, sentinel, 16)
	alloc(t, sentinel, 16)

	// Rewrite the first block as a free 8-byte block followed by an allocated 0-byte block
	require.NoError(t, sentinel.SetWord(payload-metadata.WordSize, 8))
	require.NoError(t, sentinel.SetWord(payload+8, 8))
	require.Error(t, sentinel.Validate())
}

func TestSentinelWordBounds(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)

	_, err := sentinel.Word(1000)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, err = sentinel.Word(2)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	err = sentinel.SetWord(-4, 1)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
}

func TestSentinelClear(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)
	alloc(t, sentinel, 40)
	alloc(t, sentinel, 40)

	sentinel.Clear()
	require.Equal(t, "992", headers(sentinel))
	require.True(t, sentinel.IsEmpty())
	require.NoError(t, sentinel.Validate())
}

func TestSentinelVisitAllRegions(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)
	first := alloc(t, sentinel, 40)
	second := alloc(t, sentinel, 24)
	require.NoError(t, sentinel.Free(first, 40))

	type region struct {
		offset int
		size   int
		free   bool
	}
	var regions []region
	err := sentinel.VisitAllRegions(func(offset int, size int, free bool) error {
		regions = append(regions, region{offset: offset, size: size, free: free})
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []region{
		{offset: 4, size: 40, free: true},
		{offset: second, size: 24, free: false},
		{offset: 84, size: 912, free: true},
	}, regions)
}

func TestSentinelStatistics(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)
	first := alloc(t, sentinel, 40)
	alloc(t, sentinel, 24)
	require.NoError(t, sentinel.Free(first, 40))

	var stats memutils.Statistics
	sentinel.AddStatistics(&stats)
	require.Equal(t, memutils.Statistics{
		BlockCount:      3,
		AllocationCount: 1,
		PoolBytes:       1000,
		AllocationBytes: 24,
		OverheadBytes:   24,
	}, stats)
	require.Equal(t, 952, stats.FreeBytes())

	var detailed memutils.DetailedStatistics
	detailed.Clear()
	sentinel.AddDetailedStatistics(&detailed)
	require.Equal(t, memutils.DetailedStatistics{
		Statistics:        stats,
		FreeRangeCount:    2,
		AllocationSizeMin: 24,
		AllocationSizeMax: 24,
		FreeRangeSizeMin:  40,
		FreeRangeSizeMax:  912,
	}, detailed)
}

func TestSentinelBlockJsonData(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)
	alloc(t, sentinel, 40)

	writer := jwriter.NewWriter()
	obj := writer.Object()
	sentinel.BlockJsonData(obj)
	obj.End()

	require.NoError(t, writer.Error())
	require.JSONEq(t, `{"TotalBytes":1000,"UnusedBytes":944,"Allocations":1,"UnusedRanges":1}`, string(writer.Bytes()))
}

func TestSentinelFindAllocation(t *testing.T) {
	sentinel := newSentinel(t, 8, 1000)
	first := alloc(t, sentinel, 40)

	c, err := sentinel.FindAllocation(first+32, 8)
	require.NoError(t, err)
	require.Equal(t, first-metadata.WordSize, c.Offset())

	_, err = sentinel.FindAllocation(first+36, 8)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, err = sentinel.FindAllocation(first+40+metadata.BlockOverhead, 8)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)

	_, err = sentinel.FindAllocation(0, 8)
	require.ErrorIs(t, err, memutils.ErrInvalidArgument)
}
