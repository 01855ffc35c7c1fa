package auxcloud

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// Protocol constants from the AUX/BroadLink DNA Android app. These are
// fixed configuration values baked into the vendor protocol, not
// secrets.
const (
	licenseID  = "3c015b249dd66ef0f11f9bef59ecd737"
	companyID  = "48eb1b36cf0202ab2ef07b880ecda60d"
	appVersion = "2.2.10.456537160"
	userAgent  = "Dalvik/2.1.0 (Linux; U; Android 12; SM-G991B Build/SP1A.210812.016)"

	passwordSalt  = "4969fj#k23#"
	bodySalt      = "xgx3d*fe3478$ukx"
	timestampSalt = "kdixkdqp54545^#*"
)

// Fixed CBC initialization vector, constant across all requests.
var aesInitialVector = []byte{
	234, 170, 170, 58, 187, 88, 98, 162,
	25, 24, 181, 119, 29, 22, 21, 170,
}

// hashPassword returns the hex encoded SHA1 of password||salt, the
// form the login endpoint expects in place of the plaintext password.
func hashPassword(password string) string {
	sum := sha1.Sum([]byte(password + passwordSalt))
	return hex.EncodeToString(sum[:])
}

// bodyToken returns the hex encoded MD5 over the JSON body plus the
// body salt, sent in the "token" header for the server to validate the
// encrypted payload against.
func bodyToken(jsonBody []byte) string {
	sum := md5.Sum(append(append([]byte{}, jsonBody...), bodySalt...))
	return hex.EncodeToString(sum[:])
}

// encryptionKey derives the 16 byte AES key from the request timestamp.
// The timestamp string must match the "timestamp" header byte for byte.
func encryptionKey(timestamp string) []byte {
	sum := md5.Sum([]byte(timestamp + timestampSalt))
	return sum[:]
}

// encryptBody encrypts plaintext with AES-128-CBC using the fixed IV
// and the vendor's zero padding rule: pad with 0x00 up to the next 16
// byte boundary, where a block-aligned input still gains a full block
// of zeros (pad length is always 16 - len%16, never 0).
func encryptBody(key, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	padding := aes.BlockSize - len(plaintext)%aes.BlockSize
	padded := make([]byte, len(plaintext)+padding)
	copy(padded, plaintext)

	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, aesInitialVector).CryptBlocks(out, padded)
	return out, nil
}

// decryptBody reverses encryptBody. The zero padding is left in place
// since its length is not recoverable from the ciphertext alone.
func decryptBody(key, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, aesInitialVector).CryptBlocks(out, ciphertext)
	return out, nil
}
