package blobscan

import "github.com/sirupsen/logrus"

var log = logrus.WithField("prefix", "blobscan-client")
