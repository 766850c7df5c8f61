package tempfile

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	bf, err := Create(t.TempDir(), "spill")
	require.NoError(t, err)
	defer bf.Close()

	payload := []byte("hello, spill file")
	n, err := bf.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)

	require.NoError(t, bf.Seek(0))
	buf := make([]byte, len(payload))
	n, err = bf.Read(buf)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.Equal(t, payload, buf)
}

func TestReadPastEndIsEOF(t *testing.T) {
	bf, err := Create(t.TempDir(), "spill")
	require.NoError(t, err)
	defer bf.Close()

	require.NoError(t, bf.Seek(0))
	buf := make([]byte, 8)
	_, err = bf.Read(buf)
	require.ErrorIs(t, err, io.EOF)
}

func TestSeekWithinPageDoesNotReload(t *testing.T) {
	bf, err := Create(t.TempDir(), "spill")
	require.NoError(t, err)
	defer bf.Close()

	_, err = bf.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, bf.Seek(2))
	require.Equal(t, int64(2), bf.Tell())

	buf := make([]byte, 3)
	_, err = bf.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "234", string(buf))
}

func TestWritePastOnePageSpansPages(t *testing.T) {
	bf, err := Create(t.TempDir(), "spill")
	require.NoError(t, err)
	defer bf.Close()

	big := make([]byte, PageSize+100)
	for i := range big {
		big[i] = byte(i % 251)
	}
	n, err := bf.Write(big)
	require.NoError(t, err)
	require.Equal(t, len(big), n)

	require.NoError(t, bf.Seek(0))
	readBack := make([]byte, len(big))
	total := 0
	for total < len(readBack) {
		n, err := bf.Read(readBack[total:])
		require.NoError(t, err)
		total += n
	}
	require.Equal(t, big, readBack)
}
