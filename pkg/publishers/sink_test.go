package publishers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSink(includeFriend bool, attrs ...string) sink {
	return newSink(PublisherConfig{ID: "s", Type: TypeSQS, IncludeFriend: &includeFriend, Attributes: attrs}, nil)
}

func TestSinkMessageCopiesRequestedAttributes(t *testing.T) {
	friend := "Sam"
	body, attrs, err := testSink(true, AttrBounceID, AttrTitle, AttrFriend).message(Event{BounceID: "b1", Title: "Coffee", Friend: &friend})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bounce_id": "b1", "title": "Coffee", "friend": "Sam"}, attrs)
	assert.Contains(t, string(body), `"friend":"Sam"`)
}

func TestSinkMessageOmitsAbsentFriendAttribute(t *testing.T) {
	empty := ""
	for _, friend := range []*string{nil, &empty} {
		_, attrs, err := testSink(true, AttrBounceID, AttrFriend).message(Event{BounceID: "b1", Friend: friend})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"bounce_id": "b1"}, attrs)
	}
}

func TestSinkMessageWithholdsFriend(t *testing.T) {
	friend := "Sam"
	evt := Event{BounceID: "b1", Title: "Coffee", Friend: &friend}

	body, _, err := testSink(false, AttrBounceID).message(evt)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.NotContains(t, decoded, "friend")
	assert.Equal(t, "Sam", *evt.Friend, "caller's event must not be modified")
}
