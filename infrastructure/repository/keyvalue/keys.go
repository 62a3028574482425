package keyvalue

import (
	"fmt"
	"strings"
	"time"
)

// One physical keyspace holds every entity, disambiguated by
// type-prefixed composite keys. Partitioning steps and elements under
// their thread lets GetThread read a whole conversation with one range
// scan; the UT# keyspace is a derived secondary index that answers
// "threads of a user, by time" without scanning every thread.
//
//	USER#<identifier>|USER                user item
//	THREAD#<thread_id>|THREAD             thread header
//	THREAD#<thread_id>|STEP#<step_id>     step item (feedback embedded)
//	THREAD#<thread_id>|ELEMENT#<elem_id>  element item
//	UT#USER#<uid>#TS#<padded-ts>#<tid>    user/time index entry
//	PTR#STEP#<step_id>                    step id -> owning thread
//	PTR#ELEMENT#<elem_id>                 element id -> owning thread
//	PTR#FB#<feedback_id>                  feedback id -> thread + step
const (
	pkUser    = "USER#"
	pkThread  = "THREAD#"
	skUser    = "USER"
	skThread  = "THREAD"
	skStep    = "STEP#"
	skElement = "ELEMENT#"

	indexPrefix = "UT#USER#"
	ptrStep     = "PTR#STEP#"
	ptrElement  = "PTR#ELEMENT#"
	ptrFeedback = "PTR#FB#"

	keySep = "|"
)

func userKey(identifier string) []byte {
	return []byte(pkUser + identifier + keySep + skUser)
}

func threadKey(threadID string) []byte {
	return []byte(pkThread + threadID + keySep + skThread)
}

func stepKey(threadID, stepID string) []byte {
	return []byte(pkThread + threadID + keySep + skStep + stepID)
}

func elementKey(threadID, elementID string) []byte {
	return []byte(pkThread + threadID + keySep + skElement + elementID)
}

// threadPartition is the prefix covering a thread's header, steps and
// elements.
func threadPartition(threadID string) []byte {
	return []byte(pkThread + threadID + keySep)
}

// indexKey sorts a user's threads by creation time; the zero-padded
// nanosecond timestamp keeps byte order equal to time order, with the
// thread id as tiebreak.
func indexKey(userID string, createdAt time.Time, threadID string) []byte {
	return []byte(fmt.Sprintf("%s%s#TS#%020d#%s", indexPrefix, userID, createdAt.UTC().UnixNano(), threadID))
}

func indexPartition(userID string) []byte {
	return []byte(indexPrefix + userID + "#TS#")
}

func stepPtrKey(stepID string) []byte {
	return []byte(ptrStep + stepID)
}

func elementPtrKey(elementID string) []byte {
	return []byte(ptrElement + elementID)
}

func feedbackPtrKey(feedbackID string) []byte {
	return []byte(ptrFeedback + feedbackID)
}

// sortKeyOf returns the SK portion of an item key within a thread
// partition, e.g. "STEP#step_x".
func sortKeyOf(key []byte, partition []byte) string {
	return strings.TrimPrefix(string(key), string(partition))
}

// prefixEnd returns the smallest key greater than every key with the
// given prefix, for use as an iterator upper bound.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
