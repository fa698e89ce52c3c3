package soundmodem

import (
	"fmt"
	"runtime/debug"
	"strconv"
)

// Set at build time via `-ldflags "-X 'github.com/doismellburning/soundmodem/src.SOUNDMODEM_VERSION=X'"`
var SOUNDMODEM_VERSION string

func build_setting(bi *debug.BuildInfo, key string, defaultValue string) string {
	if bi == nil {
		return defaultValue
	}
	for _, bs := range bi.Settings {
		if bs.Key == key {
			return bs.Value
		}
	}
	return defaultValue
}

/*------------------------------------------------------------------
 *
 * Name:	version_string
 *
 * Purpose:	One line for the startup log and --version.
 *
 *----------------------------------------------------------------*/

func version_string() string {
	var bi, _ = debug.ReadBuildInfo()

	var commit = build_setting(bi, "vcs.revision", "UNKNOWN")
	var dirtyStr = build_setting(bi, "vcs.modified", "INVALID")
	var dirty, dirtyErr = strconv.ParseBool(dirtyStr)
	if dirty {
		commit += "-DIRTY"
	} else if dirtyErr != nil {
		commit += "-UNKNOWNDIRTY"
	}

	var version = SOUNDMODEM_VERSION
	if version == "" {
		version = "!UNKNOWN!"
	}

	return fmt.Sprintf("soundmodem %s (revision %s, built at %s)", version, commit, build_setting(bi, "vcs.time", "UNKNOWN"))
}
