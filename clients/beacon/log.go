package beacon

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "beacon-client")
