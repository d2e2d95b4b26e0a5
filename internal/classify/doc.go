// Package classify partitions persisted keys into those a migration must
// preserve and those it must purge.
//
// Classification is driven by one declarative Policy table. The table is
// checked for internal consistency when a Classifier is built: no preserve
// or reserved key may be matched by a purge rule. After construction,
// Classify is a pure function of the key string, so the reconciler can
// evaluate it again at delete time and get the same answer it got when
// snapshotting.
//
// Keys are NFC-normalized before matching so visually identical keys
// written by different producers classify the same way.
package classify
