package fiatshamir

import (
	"github.com/sirupsen/logrus"

	"github.com/privacybydesign/fiatshamir/directory"
	"github.com/privacybydesign/fiatshamir/transport"
)

var Logger *logrus.Logger

func init() {
	Logger = logrus.StandardLogger()
	directory.Logger = Logger
	transport.Logger = Logger
}

// SetLogger replaces the logger of this package and its subpackages.
func SetLogger(l *logrus.Logger) {
	Logger = l
	directory.Logger = l
	transport.Logger = l
}
