package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// minKeyBytes はHS256署名鍵として受け付ける最小バイト長。
const minKeyBytes = 32

// SigningKey はトークンの署名と検証に使うプロセス共通の秘密鍵。
// 起動時に一度だけ生成または読み込みされ、以後は変更されない。
type SigningKey struct {
	b []byte
}

// GenerateSigningKey はcrypto/randから新しい署名鍵を生成する。
// プロセスを再起動すると鍵が変わり、発行済みトークンはすべて無効になる。
func GenerateSigningKey() (SigningKey, error) {
	b := make([]byte, minKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return SigningKey{}, fmt.Errorf("failed to generate signing key: %w", err)
	}
	return SigningKey{b: b}, nil
}

// SigningKeyFromBase64 は永続化された鍵（標準またはURLセーフのbase64）を読み込む。
// 再起動後も発行済みトークンを有効に保ちたい場合に使用する。
func SigningKeyFromBase64(encoded string) (SigningKey, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(encoded)
		if err != nil {
			return SigningKey{}, fmt.Errorf("failed to decode signing key: %w", err)
		}
	}
	if len(b) < minKeyBytes {
		return SigningKey{}, fmt.Errorf("signing key too short: %d bytes (minimum %d)", len(b), minKeyBytes)
	}
	return SigningKey{b: b}, nil
}

// IsZero は鍵が未初期化かどうかを返す。
func (k SigningKey) IsZero() bool {
	return len(k.b) == 0
}
