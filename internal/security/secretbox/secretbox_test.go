package secretbox

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	return raw
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	b, err := New(testKey())
	require.NoError(t, err)

	msg := "hola mundo ✓ secreto"
	ct, err := b.Encrypt(msg)
	require.NoError(t, err)
	require.True(t, IsEncrypted(ct))
	require.NotContains(t, ct, msg)

	pt, err := b.Decrypt(ct)
	require.NoError(t, err)
	require.Equal(t, msg, pt)

	ct2, err := b.Encrypt(msg)
	require.NoError(t, err)
	require.NotEqual(t, ct, ct2, "nonce aleatorio")
}

func TestDecrypt_DetectsTamper(t *testing.T) {
	b, err := New(testKey())
	require.NoError(t, err)
	ct, err := b.Encrypt("pw")
	require.NoError(t, err)

	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ct, Prefix))
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	_, err = b.Decrypt(Prefix + base64.StdEncoding.EncodeToString(data))
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = b.Decrypt("pw")
	require.ErrorIs(t, err, ErrMalformed)
	_, err = b.Decrypt(Prefix + "!!!")
	require.ErrorIs(t, err, ErrMalformed)
	_, err = b.Decrypt(Prefix + base64.StdEncoding.EncodeToString([]byte("short")))
	require.ErrorIs(t, err, ErrMalformed)

	other := testKey()
	other[0] = 0xAA
	ob, err := New(other)
	require.NoError(t, err)
	_, err = ob.Decrypt(ct)
	require.ErrorIs(t, err, ErrDecrypt)
}

func TestParseKey(t *testing.T) {
	k := testKey()
	for _, s := range []string{
		base64.StdEncoding.EncodeToString(k),
		base64.RawStdEncoding.EncodeToString(k),
		hex.EncodeToString(k),
	} {
		got, err := ParseKey(s)
		require.NoError(t, err, s)
		require.Equal(t, k, got)
	}
	_, err := ParseKey("")
	require.ErrorIs(t, err, ErrNoKey)
	_, err = ParseKey("c2hvcnQ=")
	require.Error(t, err)
	_, err = New([]byte("short"))
	require.Error(t, err)
}

func TestGlobalBoxFromEnv(t *testing.T) {
	UnsafeResetForTests()
	t.Cleanup(UnsafeResetForTests)
	t.Setenv(EnvKey, "")

	// sin clave: los valores planos pasan, los cifrados fallan
	pt, err := Reveal("plain")
	require.NoError(t, err)
	require.Equal(t, "plain", pt)
	_, err = Encrypt("x")
	require.ErrorIs(t, err, ErrNoKey)
	require.False(t, Ready())

	UnsafeResetForTests()
	t.Setenv(EnvKey, base64.StdEncoding.EncodeToString(testKey()))
	require.True(t, Ready())
	ct, err := Encrypt("s3cret")
	require.NoError(t, err)
	pt, err = Reveal(ct)
	require.NoError(t, err)
	require.Equal(t, "s3cret", pt)
}
