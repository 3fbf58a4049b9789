package notify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestShortenPath(t *testing.T) {
	testCases := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "empty path gets default label",
			path:     "",
			expected: defaultPathLabel,
		},
		{
			name:     "short path untouched",
			path:     "/srv/reports",
			expected: "/srv/reports",
		},
		{
			name:     "long posix path keeps root and tail",
			path:     "/home/user/documents/projects/customer/2024/reports/daily",
			expected: "home/.../reports/daily",
		},
		{
			name:     "windows drive letter kept with first segment",
			path:     `C:\Users\taro\Documents\Projects\Customer\2024\Reports\Daily`,
			expected: `C:\Users\...\Reports\Daily`,
		},
		{
			name:     "onedrive company abbreviated",
			path:     `C:\Users\taro\OneDrive - ExampleCompanyLimited\Documents\Projects\Reports\Daily`,
			expected: `OneDrive - ExampleCom...\...\Projects\Reports\Daily`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, ShortenPath(tc.path))
		})
	}
}

func TestShortenPathNeverLongerThanInputStructure(t *testing.T) {
	assert := require.New(t)

	long := "/a/" + strings.Repeat("segment/", 20) + "tail"
	short := ShortenPath(long)
	assert.Contains(short, "...")
	assert.Less(len(short), len(long))
}
