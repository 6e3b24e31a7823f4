package synchronizer

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "synchronizer")
