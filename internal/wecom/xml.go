package wecom

import "encoding/xml"

// Message types carried in MsgType.
const (
	MsgTypeText  = "text"
	MsgTypeEvent = "event"
)

// EventClick is the only event this bot reacts to (menu button presses).
const EventClick = "click"

// callbackEnvelope is the outer container POSTed by the platform; the
// interesting parts (signature, timestamp, nonce) travel as query
// parameters next to it.
type callbackEnvelope struct {
	XMLName xml.Name `xml:"xml"`
	Encrypt string   `xml:"Encrypt"`
}

// Message is the decrypted inner message.
type Message struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   string   `xml:"ToUserName"`
	FromUserName string   `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      string   `xml:"MsgType"`
	Content      string   `xml:"Content"`
	MsgID        string   `xml:"MsgId"`
	Event        string   `xml:"Event"`
	EventKey     string   `xml:"EventKey"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

// replyMessage mirrors the inner message shape for passive text replies.
type replyMessage struct {
	XMLName      xml.Name `xml:"xml"`
	ToUserName   cdata    `xml:"ToUserName"`
	FromUserName cdata    `xml:"FromUserName"`
	CreateTime   int64    `xml:"CreateTime"`
	MsgType      cdata    `xml:"MsgType"`
	Content      cdata    `xml:"Content"`
}

// encryptedReply is the outer container for a passive reply.
type encryptedReply struct {
	XMLName      xml.Name `xml:"xml"`
	Encrypt      cdata    `xml:"Encrypt"`
	MsgSignature cdata    `xml:"MsgSignature"`
	TimeStamp    int64    `xml:"TimeStamp"`
	Nonce        cdata    `xml:"Nonce"`
}

func buildReplyXML(toUser, fromUser string, createTime int64, content string) ([]byte, error) {
	return xml.Marshal(replyMessage{
		ToUserName:   cdata{toUser},
		FromUserName: cdata{fromUser},
		CreateTime:   createTime,
		MsgType:      cdata{MsgTypeText},
		Content:      cdata{content},
	})
}
