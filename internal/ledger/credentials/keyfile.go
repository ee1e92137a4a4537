package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dream-factory-code/go-tolar/internal/ledger"
	"github.com/dream-factory-code/go-tolar/internal/ledger/signer"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	keyFileVersion = 3
	cipherName     = "aes-128-ctr"
	kdfScrypt      = "scrypt"
	kdfPBKDF2      = "pbkdf2"

	saltLength = 32
	ivLength   = 16
	aesKeyLen  = 16
)

// KeyFileJSON is the version 3 key file layout.
type KeyFileJSON struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Address string `json:"address,omitempty"`
	Crypto  struct {
		Ciphertext   string `json:"ciphertext"`
		CipherParams struct {
			IV string `json:"iv"`
		} `json:"cipherparams"`
		Cipher    string          `json:"cipher"`
		KDF       string          `json:"kdf"`
		KDFParams json.RawMessage `json:"kdfparams"`
		MAC       string          `json:"mac"`
	} `json:"crypto"`
}

type scryptParamsJSON struct {
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
	N     int    `json:"n"`
	R     int    `json:"r"`
	P     int    `json:"p"`
}

type pbkdf2ParamsJSON struct {
	DKLen int    `json:"dklen"`
	Salt  string `json:"salt"`
	C     int    `json:"c"`
	PRF   string `json:"prf"`
}

// ScryptParams are the scrypt cost parameters used when writing key files.
type ScryptParams struct {
	N     int
	R     int
	P     int
	DKLen int
}

// StandardScryptParams match the usual wallet defaults.
func StandardScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 18, R: 8, P: 1, DKLen: 32}
}

// LightScryptParams trade strength for speed.
func LightScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 12, R: 8, P: 6, DKLen: 32}
}

// EncryptKey encrypts key into a version 3 key file.
//
//nolint:varnamelen // iv is the usual name for an initialization vector
func EncryptKey(key *ecdsa.PrivateKey, password string, params ScryptParams, profile ledger.AddressProfile) (*KeyFileJSON, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, errors.Wrap(err, "failed to generate salt")
	}

	iv := make([]byte, ivLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Wrap(err, "failed to generate IV")
	}

	derivedKey, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive key")
	}

	ciphertext, err := aesCTR(derivedKey[:aesKeyLen], iv, crypto.FromECDSA(key))
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt private key")
	}

	kdfParams, err := json.Marshal(scryptParamsJSON{
		DKLen: params.DKLen,
		Salt:  hex.EncodeToString(salt),
		N:     params.N,
		R:     params.R,
		P:     params.P,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode kdf params")
	}

	address, err := ledger.AddressFromPublicKey(crypto.FromECDSAPub(&key.PublicKey), profile)
	if err != nil {
		return nil, err
	}

	keyFile := &KeyFileJSON{
		Version: keyFileVersion,
		ID:      uuid.New().String(),
		Address: hex.EncodeToString(address),
	}
	keyFile.Crypto.Ciphertext = hex.EncodeToString(ciphertext)
	keyFile.Crypto.CipherParams.IV = hex.EncodeToString(iv)
	keyFile.Crypto.Cipher = cipherName
	keyFile.Crypto.KDF = kdfScrypt
	keyFile.Crypto.KDFParams = kdfParams
	keyFile.Crypto.MAC = hex.EncodeToString(keyFileMAC(derivedKey, ciphertext))

	return keyFile, nil
}

// DecryptKeyFile decrypts a version 3 key file (scrypt or pbkdf2).
func DecryptKeyFile(data []byte, password string) (*ecdsa.PrivateKey, error) {
	var keyFile KeyFileJSON
	if err := json.Unmarshal(data, &keyFile); err != nil {
		return nil, &ledger.KeyFormatError{Reason: "key file is not valid JSON", Err: err}
	}

	return DecryptKey(&keyFile, password)
}

//nolint:varnamelen // iv is the usual name for an initialization vector
func DecryptKey(keyFile *KeyFileJSON, password string) (*ecdsa.PrivateKey, error) {
	if keyFile.Version != keyFileVersion {
		return nil, &ledger.KeyFormatError{Reason: fmt.Sprintf("unsupported key file version %d", keyFile.Version)}
	}

	if keyFile.Crypto.Cipher != cipherName {
		return nil, &ledger.KeyFormatError{Reason: fmt.Sprintf("unsupported cipher %q", keyFile.Crypto.Cipher)}
	}

	iv, err := hex.DecodeString(keyFile.Crypto.CipherParams.IV)
	if err != nil {
		return nil, &ledger.KeyFormatError{Reason: "failed to decode IV", Err: err}
	}

	ciphertext, err := hex.DecodeString(keyFile.Crypto.Ciphertext)
	if err != nil {
		return nil, &ledger.KeyFormatError{Reason: "failed to decode ciphertext", Err: err}
	}

	expectedMAC, err := hex.DecodeString(keyFile.Crypto.MAC)
	if err != nil {
		return nil, &ledger.KeyFormatError{Reason: "failed to decode MAC", Err: err}
	}

	derivedKey, err := deriveKey(keyFile.Crypto.KDF, keyFile.Crypto.KDFParams, password)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare(keyFileMAC(derivedKey, ciphertext), expectedMAC) != 1 {
		return nil, &ledger.KeyFormatError{Reason: "invalid password: MAC mismatch"}
	}

	plaintext, err := aesCTR(derivedKey[:aesKeyLen], iv, ciphertext)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decrypt private key")
	}

	return signer.PrivateKeyFromBytes(plaintext)
}

func deriveKey(kdf string, raw json.RawMessage, password string) ([]byte, error) {
	switch kdf {
	case kdfScrypt:
		var params scryptParamsJSON
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &ledger.KeyFormatError{Reason: "invalid scrypt params", Err: err}
		}

		salt, err := hex.DecodeString(params.Salt)
		if err != nil {
			return nil, &ledger.KeyFormatError{Reason: "failed to decode salt", Err: err}
		}

		derived, err := scrypt.Key([]byte(password), salt, params.N, params.R, params.P, params.DKLen)
		if err != nil {
			return nil, errors.Wrap(err, "failed to derive key")
		}

		return checkDerivedLength(derived)
	case kdfPBKDF2:
		var params pbkdf2ParamsJSON
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &ledger.KeyFormatError{Reason: "invalid pbkdf2 params", Err: err}
		}

		if params.PRF != "hmac-sha256" {
			return nil, &ledger.KeyFormatError{Reason: fmt.Sprintf("unsupported pbkdf2 prf %q", params.PRF)}
		}

		salt, err := hex.DecodeString(params.Salt)
		if err != nil {
			return nil, &ledger.KeyFormatError{Reason: "failed to decode salt", Err: err}
		}

		return checkDerivedLength(pbkdf2.Key([]byte(password), salt, params.C, params.DKLen, sha256.New))
	default:
		return nil, &ledger.KeyFormatError{Reason: fmt.Sprintf("unsupported kdf %q", kdf)}
	}
}

func checkDerivedLength(derived []byte) ([]byte, error) {
	if len(derived) < 2*aesKeyLen {
		return nil, &ledger.KeyFormatError{Reason: "derived key shorter than 32 bytes"}
	}

	return derived, nil
}

// keyFileMAC is keccak256(derivedKey[16:32] || ciphertext).
func keyFileMAC(derivedKey, ciphertext []byte) []byte {
	return crypto.Keccak256(derivedKey[aesKeyLen:2*aesKeyLen], ciphertext)
}

//nolint:varnamelen // iv is the usual name for an initialization vector
func aesCTR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create cipher")
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)

	return out, nil
}

// LoadKeyFile reads and decrypts the key file at path.
func LoadKeyFile(path, password string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read key file %s", path)
	}

	return DecryptKeyFile(data, password)
}

// WriteKeyFile encrypts key into dir as UTC--<time>--<address>.json and
// returns the file path.
func WriteKeyFile(dir string, key *ecdsa.PrivateKey, password string, params ScryptParams, profile ledger.AddressProfile) (string, error) {
	keyFile, err := EncryptKey(key, password, params, profile)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(keyFile, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to encode key file")
	}

	name := fmt.Sprintf("UTC--%s--%s.json",
		time.Now().UTC().Format("2006-01-02T15-04-05.000000000Z"), keyFile.Address)
	path := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "failed to create key directory %s", dir)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", errors.Wrapf(err, "failed to write key file %s", path)
	}

	return path, nil
}
