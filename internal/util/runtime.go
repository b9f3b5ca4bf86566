package util

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"
)

const mgmtSecretLen = 16

var projectRootDir = func() string {
	if dir, ok := os.LookupEnv("PROJECT_ROOT_DIR"); ok {
		return dir
	}

	// internal/util/runtime.go -> project root
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "/app"
	}

	return filepath.Join(filepath.Dir(file), "..", "..")
}()

// GetProjectRootDir returns the path as string to the project_root for the **running application**.
// Note that this is the root directory of the module, not the binary location.
func GetProjectRootDir() string {
	return projectRootDir
}

// RunningInTest reports whether the current binary was built by "go test".
func RunningInTest() bool {
	return flag.Lookup("test.v") != nil || strings.HasSuffix(os.Args[0], ".test")
}

// GetMgmtSecret returns the management secret from the env or generates a random one.
func GetMgmtSecret(envKey string) string {
	if val, ok := os.LookupEnv(envKey); ok && val != "" {
		return val
	}

	buf := make([]byte, mgmtSecretLen)
	if _, err := rand.Read(buf); err != nil {
		log.Panic().Err(err).Msg("Failed to generate random management secret")
	}

	secret := hex.EncodeToString(buf)
	log.Warn().Str("envKey", envKey).Msg("Management secret not set, generated a random one")

	return secret
}
