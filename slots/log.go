package slots

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "slots")
