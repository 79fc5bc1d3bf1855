/*
Package argscodec turns the harness command line into the flat key/value
configuration that the isolated context sees.

# Token format

Tokens look like --key=value. The first two characters are stripped
unconditionally and the remainder is split on the first '='. A token with no
'=' still records its key, with an absent value:

	--url=https://example.test   url -> "https://example.test"
	--query=a=b                  query -> "a=b"
	--headless                   headless -> (absent)

# Duplicates

The first occurrence of a key wins. Later tokens for the same key are dropped
silently, including when the first occurrence had an absent value.

# Transport

A ConfigMap crosses the isolation boundary as a JSON object. Absent values are
encoded as null and decode back to absent, so Deserialize(Serialize(m)) == m.
*/
package argscodec
